package ollamaapi

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/aix/pkg/llm"
)

const (
	// defaultContextWindow applies when neither the base model table nor the
	// model parameters name one.
	defaultContextWindow = 8192

	// maxParallelShow bounds concurrent /api/show calls while listing.
	maxParallelShow = 8
)

// ListModels lists the installed models as model descriptors, merging each
// /api/tags entry with its /api/show details.
func (c *Client) ListModels(ctx context.Context) ([]llm.Model, error) {
	tags, err := c.Tags(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing %s models: %w", c.name, err)
	}

	infos := make([]*ModelInfo, len(tags))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelShow)
	for i, tag := range tags {
		g.Go(func() error {
			info, err := c.Show(gctx, tag.Name)
			if err != nil {
				return fmt.Errorf("showing %s model %q: %w", c.name, tag.Name, err)
			}
			infos[i] = info
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	models := make([]llm.Model, len(tags))
	for i := range tags {
		models[i] = describe(tags[i], infos[i])
	}
	return models, nil
}

// describe converts a tag entry and its details into a model descriptor.
func describe(tag TagModel, info *ModelInfo) llm.Model {
	// names are "name:tag", the tag defaulting to latest
	modelName, modelTag, _ := strings.Cut(tag.Name, ":")

	label := capitalize(modelName)
	if modelTag != "" && modelTag != "latest" {
		label += " (" + modelTag + ")"
	}

	base, known := findBaseModel(modelName)
	description := "Model unknown"
	if known && base.Description != "" {
		description = base.Description
	}

	details := tag.Details
	if info != nil && info.Details != (ModelDetails{}) {
		details = info.Details
	}
	if details.QuantizationLevel != "" || details.Format != "" || details.ParameterSize != "" {
		var first strings.Builder
		if details.ParameterSize != "" {
			first.WriteString(details.ParameterSize + " parameters ")
		}
		if details.QuantizationLevel != "" {
			first.WriteString("(" + details.QuantizationLevel)
			if details.Format != "" {
				first.WriteString(", " + details.Format)
			}
			first.WriteString(")")
		}
		if tag.Size > 0 {
			fmt.Fprintf(&first, ", %.1f GB", float64(tag.Size)/1024/1024/1024)
		}
		if base.HasTools {
			first.WriteString(" [tools]")
		}
		if base.HasVision {
			first.WriteString(" [vision]")
		}
		description = first.String() + "\n\n" + description
	}

	contextWindow := base.ContextWindow
	if contextWindow == 0 {
		contextWindow = defaultContextWindow
	}
	if info != nil {
		if n, ok := numCtx(info.Parameters); ok {
			contextWindow = n
		}
	}

	var interfaces []string
	if !base.IsEmbeddings {
		interfaces = append(interfaces, llm.InterfaceChat)
	}
	if base.HasTools {
		interfaces = append(interfaces, llm.InterfaceFn)
	}
	if base.HasVision || strings.Contains(modelName, "-vision") {
		interfaces = append(interfaces, llm.InterfaceVision)
	}

	return llm.Model{
		ID:                  tag.Name,
		Label:               label,
		Description:         description,
		Created:             tag.ModifiedAt,
		Updated:             tag.ModifiedAt,
		ContextWindow:       contextWindow,
		MaxCompletionTokens: (contextWindow + 1) / 2,
		Interfaces:          interfaces,
	}
}

// numCtx finds a "num_ctx <n>" line in a modelfile parameter block.
func numCtx(parameters string) (int, bool) {
	for line := range strings.SplitSeq(parameters, "\n") {
		if !strings.HasPrefix(line, "num_ctx ") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// PullableModel is a model that can be pulled onto the server.
type PullableModel struct {
	ID          string   `json:"id"`
	Label       string   `json:"label"`
	Tag         string   `json:"tag"`
	Tags        []string `json:"tags"`
	Description string   `json:"description"`
	Pulls       int      `json:"pulls"`
	IsNew       bool     `json:"is_new"`
}

// ListPullable returns the table of well-known pullable models.
func ListPullable() []PullableModel {
	out := make([]PullableModel, 0, len(baseModels))
	for _, m := range baseModels {
		tags := m.Tags
		if tags == nil {
			tags = []string{}
		}
		out = append(out, PullableModel{
			ID:          m.ID,
			Label:       capitalize(m.ID),
			Tag:         "latest",
			Tags:        tags,
			Description: m.Description,
			Pulls:       m.Pulls,
			IsNew:       m.Added != "" && m.Added > prevUpdate,
		})
	}
	return out
}
