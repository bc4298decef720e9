package oracle

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/ian-dev-s/ttwf-lead-automation-sub000/internal/model"
	"github.com/ian-dev-s/ttwf-lead-automation-sub000/pkg/anthropic"
)

// anthropicOracle implements Oracle on top of the Anthropic messages API.
type anthropicOracle struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	system    []anthropic.SystemBlock
}

// NewAnthropic builds the production oracle. The system prompt is sent with a
// cache breakpoint so repeated per-candidate calls hit the warm prompt cache.
func NewAnthropic(client anthropic.Client, modelID string, maxTokens int64) Oracle {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &anthropicOracle{
		client:    client,
		model:     modelID,
		maxTokens: maxTokens,
		system:    anthropic.BuildCachedSystemBlocks(systemPrompt),
	}
}

func (o *anthropicOracle) complete(ctx context.Context, phase, prompt string) (string, error) {
	resp, err := o.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		System:    o.system,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", eris.Wrapf(err, "oracle: %s", phase)
	}
	resp.Usage.LogCost(o.model, phase)
	return resp.Text(), nil
}

func (o *anthropicOracle) ExtractFields(ctx context.Context, req ExtractRequest) (*ExtractedFields, error) {
	text, err := o.complete(ctx, "extract", extractPrompt(req))
	if err != nil {
		return nil, err
	}
	var out ExtractedFields
	if err := decodeResponse("extract", text, &out); err != nil {
		return nil, err
	}
	sanitizeExtracted(&out)
	return &out, nil
}

func (o *anthropicOracle) CrossReference(ctx context.Context, req CrossRefRequest) (*MergedRecord, error) {
	text, err := o.complete(ctx, "crossref", crossRefPrompt(req))
	if err != nil {
		return nil, err
	}
	var out MergedRecord
	if err := decodeResponse("crossref", text, &out); err != nil {
		return nil, err
	}
	sanitizeMerged(&out)
	return &out, nil
}

func (o *anthropicOracle) AnalyzeBusiness(ctx context.Context, req AnalyzeRequest) (*model.BusinessAnalysis, error) {
	text, err := o.complete(ctx, "analyze", analyzePrompt(req))
	if err != nil {
		return nil, err
	}
	var out model.BusinessAnalysis
	if err := decodeResponse("analyze", text, &out); err != nil {
		return nil, err
	}
	sanitizeAnalysis(&out)
	return &out, nil
}

func (o *anthropicOracle) QualifyLead(ctx context.Context, req QualifyRequest) (*model.Qualification, error) {
	text, err := o.complete(ctx, "qualify", qualifyPrompt(req))
	if err != nil {
		return nil, err
	}
	var out model.Qualification
	if err := decodeResponse("qualify", text, &out); err != nil {
		return nil, err
	}
	sanitizeQualification(&out)
	return &out, nil
}
