package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/aix/pkg/llm"
	"github.com/papercomputeco/aix/pkg/llm/access"
	"github.com/papercomputeco/aix/pkg/llm/ollamaapi"
	"github.com/papercomputeco/aix/pkg/llm/vendor"
)

// ModelsRequest is the body of POST /llms/:vendor/models.
type ModelsRequest struct {
	Access json.RawMessage `json:"access,omitempty"`
}

// ModelsResponse lists the models of one vendor service.
type ModelsResponse struct {
	Models []llm.Model `json:"models"`
}

// AdminRequest is the body of the pull and delete admin routes.
type AdminRequest struct {
	Access json.RawMessage `json:"access,omitempty"`
	Name   string          `json:"name"`
}

// PullableResponse lists the models an ollama-family service can pull.
type PullableResponse struct {
	Pullable []ollamaapi.PullableModel `json:"pullable"`
}

// DeleteResponse acknowledges a deleted model.
type DeleteResponse struct {
	Deleted string `json:"deleted"`
}

// handleListModels asks the vendor service for its models.
func (s *Server) handleListModels(c *fiber.Ctx) error {
	v := vendor.FindModelVendor(c.Params("vendor"))
	if v == nil {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: errUnknownVendor.Error()})
	}

	var body ModelsRequest
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
		}
	}

	a, err := s.accessFor(v.ID, body.Access)
	if err != nil {
		return c.Status(statusFor(err)).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	models, err := v.ListModels(c.UserContext(), a)
	if err != nil {
		s.logger.Warn("listing models failed", "vendor", v.ID, "error", err)
		return c.Status(statusFor(err)).JSON(llm.ErrorResponse{Error: err.Error()})
	}
	if models == nil {
		models = []llm.Model{}
	}

	return c.JSON(ModelsResponse{Models: models})
}

// handleAdminPullable returns the curated table of pullable models.
func (s *Server) handleAdminPullable(c *fiber.Ctx) error {
	if _, err := adminVendor(c); err != nil {
		return err
	}
	return c.JSON(PullableResponse{Pullable: ollamaapi.ListPullable()})
}

// handleAdminPull pulls a model onto the vendor service.
func (s *Server) handleAdminPull(c *fiber.Ctx) error {
	client, name, err := s.adminClient(c)
	if err != nil {
		return err
	}

	result, err := client.Pull(c.UserContext(), name)
	if err != nil {
		return c.Status(statusFor(err)).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	s.logger.Info("model pull finished", "model", name, "status", result.Status, "error", result.Error)
	return c.JSON(result)
}

// handleAdminDelete deletes a model from the vendor service.
func (s *Server) handleAdminDelete(c *fiber.Ctx) error {
	client, name, err := s.adminClient(c)
	if err != nil {
		return err
	}

	if err := client.Delete(c.UserContext(), name); err != nil {
		return c.Status(statusFor(err)).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	s.logger.Info("model deleted", "model", name)
	return c.JSON(DeleteResponse{Deleted: name})
}

// adminVendor resolves the route vendor, which must speak an ollama-family
// dialect.
func adminVendor(c *fiber.Ctx) (*vendor.Vendor, error) {
	v := vendor.FindModelVendor(c.Params("vendor"))
	if v == nil {
		return nil, fiber.NewError(fiber.StatusNotFound, errUnknownVendor.Error())
	}
	switch v.Dialect() {
	case access.DialectOllama, access.DialectEgregore:
		return v, nil
	default:
		return nil, fiber.NewError(fiber.StatusBadRequest, "admin operations require an ollama or egregore vendor")
	}
}

func (s *Server) adminClient(c *fiber.Ctx) (*ollamaapi.Client, string, error) {
	v, err := adminVendor(c)
	if err != nil {
		return nil, "", err
	}

	var body AdminRequest
	if err := json.Unmarshal(c.Body(), &body); err != nil {
		return nil, "", fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if body.Name == "" {
		return nil, "", fiber.NewError(fiber.StatusBadRequest, "name is required")
	}

	a, err := s.accessFor(v.ID, body.Access)
	if err != nil {
		return nil, "", fiber.NewError(statusFor(err), err.Error())
	}

	client, err := ollamaapi.NewClient(a)
	if err != nil {
		return nil, "", fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return client, body.Name, nil
}
