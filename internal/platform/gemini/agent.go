package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/jelatinone/scholarfind/internal/agent"
	"github.com/jelatinone/scholarfind/internal/config"
	"github.com/jelatinone/scholarfind/internal/scholar"
)

// Agent implements agent.Annotator and agent.Evaluator against the Gemini
// API. It is safe for concurrent use; Reset rebuilds the underlying client.
type Agent struct {
	logger *slog.Logger
	cfg    config.LLMConfig

	mu     sync.Mutex
	client *genai.Client
}

// annotateStub mirrors the JSON shape the extraction prompt requests.
type annotateStub struct {
	ScholarshipTitle string   `json:"scholarshipTitle"`
	OrganizationName string   `json:"organizationName"`
	Award            *float64 `json:"award"`
	Open             *string  `json:"open"`
	Close            *string  `json:"close"`
	Pursued          []string `json:"pursued"`
	Education        []string `json:"education"`
	Supplements      []string `json:"supplements"`
	Requirements     []string `json:"requirements"`
}

// NewAgent creates a Gemini-backed agent with the provided configuration.
func NewAgent(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Agent, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger cannot be nil", agent.ErrInvalidConfig)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key cannot be empty", agent.ErrInvalidConfig)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", agent.ErrInvalidConfig)
	}

	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Agent{
		logger: logger.With("component", "gemini_agent", "model", cfg.Model),
		cfg:    cfg,
		client: client,
	}, nil
}

func newClient(ctx context.Context, cfg config.LLMConfig) (*genai.Client, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", agent.ErrInvalidConfig, err)
	}
	return client, nil
}

// Reset tears down and reacquires the API client. Used by task restarts.
func (a *Agent) Reset(ctx context.Context) error {
	client, err := newClient(ctx, a.cfg)
	if err != nil {
		return err
	}

	a.mu.Lock()
	a.client = client
	a.mu.Unlock()

	a.logger.Debug("gemini client reacquired")
	return nil
}

// generate runs one model call and returns the raw response text. Safety
// blocks and malformed responses map onto the agent error taxonomy; other
// API failures are reported as transient.
func (a *Agent) generate(ctx context.Context, system string, user string) (string, error) {
	a.mu.Lock()
	client := a.client
	a.mu.Unlock()

	generateConfig := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: system}},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, a.cfg.Model, genai.Text(user), generateConfig)
	if err != nil {
		return "", fmt.Errorf("%w: %v", agent.ErrTransientFailure, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", agent.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", agent.ErrContentBlocked
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", agent.ErrInvalidResponse)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("%w: empty response text", agent.ErrInvalidResponse)
	}
	return text, nil
}

// Annotate maps the visible text of one page to a scholarship annotation.
func (a *Agent) Annotate(ctx context.Context, pageText string, pageURL string) (*scholar.Annotation, error) {
	if strings.TrimSpace(pageText) == "" {
		return nil, fmt.Errorf("%w: page text is empty", agent.ErrInvalidResponse)
	}

	text, err := a.generate(ctx, annotatePrompt, pageText)
	if err != nil {
		return nil, err
	}

	var stub annotateStub
	if err := json.Unmarshal([]byte(text), &stub); err != nil {
		return nil, fmt.Errorf("%w: failed to parse extraction: %v", agent.ErrInvalidResponse, err)
	}
	if stub.ScholarshipTitle == "" {
		return nil, fmt.Errorf("%w: extraction missing scholarship title", agent.ErrInvalidResponse)
	}

	annotation := &scholar.Annotation{
		Name:         stub.ScholarshipTitle,
		Organization: stub.OrganizationName,
		URL:          pageURL,
		Award:        stub.Award,
		Open:         stub.Open,
		Close:        stub.Close,
		Pursued:      normalizeEnum(stub.Pursued, validDegrees, a.logger, "pursued"),
		Education:    normalizeEnum(stub.Education, validEducation, a.logger, "education"),
		Supplements:  normalizeEnum(stub.Supplements, validSupplements, a.logger, "supplements"),
		Requirements: stub.Requirements,
	}

	a.logger.Debug("annotation extracted",
		"url", pageURL,
		"name", annotation.Name,
		"requirements", len(annotation.Requirements))
	return annotation, nil
}

// Qualifies reports whether the profile satisfies the annotation's
// requirements and the profile's own preference constraints.
func (a *Agent) Qualifies(ctx context.Context, annotation *scholar.Annotation, profile scholar.Profile) (bool, error) {
	if annotation == nil {
		return false, fmt.Errorf("%w: annotation cannot be nil", agent.ErrInvalidResponse)
	}

	annotationJSON, err := json.Marshal(annotation)
	if err != nil {
		return false, fmt.Errorf("failed to serialize annotation: %w", err)
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return false, fmt.Errorf("failed to serialize profile: %w", err)
	}

	user := fmt.Sprintf("Scholarship:\n%s\n\nStudent profile:\n%s", annotationJSON, profileJSON)
	text, err := a.generate(ctx, filterPrompt, user)
	if err != nil {
		return false, err
	}

	switch strings.ToLower(strings.Trim(strings.TrimSpace(text), `"`)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: expected true or false, got %q", agent.ErrInvalidResponse, text)
	}
}

var (
	validDegrees = map[string]struct{}{
		scholar.DegreeAssociate:    {},
		scholar.DegreeBachelor:     {},
		scholar.DegreeMaster:       {},
		scholar.DegreeDoctorate:    {},
		scholar.DegreeCertificate:  {},
		scholar.DegreeTrade:        {},
		scholar.DegreeNotSpecified: {},
	}
	validEducation = map[string]struct{}{
		scholar.EducationHighSchool:    {},
		scholar.EducationUndergraduate: {},
		scholar.EducationGraduate:      {},
		scholar.EducationNotSpecified:  {},
	}
	validSupplements = map[string]struct{}{
		scholar.SupplementEssay:          {},
		scholar.SupplementTranscript:     {},
		scholar.SupplementRecommendation: {},
		scholar.SupplementResume:         {},
		scholar.SupplementFinancialInfo:  {},
		scholar.SupplementPortfolio:      {},
	}
)

// normalizeEnum uppercases values and drops anything outside the allowed
// set. The model is instructed to use exact values, but answers drift.
func normalizeEnum(values []string, allowed map[string]struct{}, logger *slog.Logger, field string) []string {
	normalized := make([]string, 0, len(values))
	for _, value := range values {
		candidate := strings.ToUpper(strings.TrimSpace(value))
		if _, ok := allowed[candidate]; ok {
			normalized = append(normalized, candidate)
			continue
		}
		logger.Debug("dropping unknown enum value", "field", field, "value", value)
	}
	return normalized
}

// Interface conformance.
var (
	_ agent.Annotator  = (*Agent)(nil)
	_ agent.Evaluator  = (*Agent)(nil)
	_ agent.Resettable = (*Agent)(nil)
)
