package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"

	"coo-agent/internal/core"
)

// AdvisorNote is the human-facing narrative attached to a recommendation.
type AdvisorNote struct {
	Reasoning  string   `json:"reasoning"`
	Caveats    []string `json:"caveats"`
	Confidence string   `json:"confidence"`
}

// Advisor turns a ranked recommendation and its ROI breakdown into a short
// reasoning narrative via structured LLM output. Without an API key it falls
// back to a template so the recommendation flow never depends on the LLM.
type Advisor struct {
	client *openai.Client
}

// NewAdvisor returns an advisor. An empty apiKey yields template-only mode.
func NewAdvisor(apiKey string) *Advisor {
	if apiKey == "" {
		return &Advisor{}
	}
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Advisor{client: &client}
}

// Annotate produces the advisor note for a recommendation.
func (a *Advisor) Annotate(ctx context.Context, rec core.Recommendation, roi *core.ROIResult, summary core.TrainingSummary) (AdvisorNote, error) {
	if a.client == nil {
		return templateNote(rec), nil
	}

	prompt := fmt.Sprintf(`You are a fractional COO advising a small business owner.
Explain the recommended action below in 2-4 sentences of plain business language,
list concrete caveats, and state your confidence (high/medium/low).
Be direct; do not restate the raw numbers verbatim.

Recommendation: %s
Product: %s, quantity %d
Projected ROI: %.1f%%, predicted profit $%s, confidence %s

Historical accuracy: %.0f%% mean ROI prediction accuracy over %d completed actions.`,
		rec.Action, rec.ProductName, rec.Quantity,
		rec.ExpectedROI, rec.PredictedProfit.StringFixed(2), rec.ConfidenceLabel,
		summary.MeanROIAccuracy*100, summary.CompletedCount)

	if roi != nil {
		prompt += fmt.Sprintf("\nStockout risk: %.0f%%, estimated days to stockout: %.0f.",
			roi.StockoutRisk*100, roi.TimeToStockoutDays)
	}

	schemaJSON, err := json.Marshal(noteSchema())
	if err != nil {
		return AdvisorNote{}, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return AdvisorNote{}, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(shared.ChatModelGPT4o),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "advisor_note",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("Reasoning narrative for a business action recommendation"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return AdvisorNote{}, fmt.Errorf("openai responses error: %w", err)
	}
	content := resp.OutputText()
	if content == "" {
		return AdvisorNote{}, fmt.Errorf("empty response content")
	}

	var note AdvisorNote
	if err := json.Unmarshal([]byte(content), &note); err != nil {
		return AdvisorNote{}, fmt.Errorf("failed to parse completion: %w", err)
	}
	if note.Confidence == "" {
		note.Confidence = rec.ConfidenceLabel
	}
	return note, nil
}

func templateNote(rec core.Recommendation) AdvisorNote {
	note := AdvisorNote{
		Reasoning:  rec.Reasoning,
		Confidence: rec.ConfidenceLabel,
	}
	if rec.Action == core.ActionMonitor {
		note.Caveats = []string{"No action cleared the projection bar this cycle."}
		return note
	}
	note.Caveats = []string{
		"Projection assumes current demand trends hold through the tracking window.",
		fmt.Sprintf("Confidence is %s; review before committing working capital.", rec.ConfidenceLabel),
	}
	return note
}

func noteSchema() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v AdvisorNote
	return reflector.Reflect(v)
}
