// Package tools exposes the knowledge base to Gemini function calling.
//
// Two functions are declared: one stores content in the knowledge base, the
// other retrieves relevant content for a question. Responses carry plain
// strings or match lists so the model can quote them directly; failures
// surface as user-readable text rather than errors, keeping the tool loop
// alive.
package tools

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/agentkb/agentkb/internal/retrieval"
)

// Function names registered with the model.
const (
	// AddResourceName stores a piece of content in the knowledge base.
	AddResourceName = "addResource"
	// GetInformationName answers a question from the knowledge base.
	GetInformationName = "getInformation"
)

// retrievalService is the subset of the retrieval service the tools need.
type retrievalService interface {
	CreateResource(ctx context.Context, content, userID string, agentID *string) string
	FindRelevantContent(ctx context.Context, query, userID string, agentID *string) retrieval.Result
}

// Knowledge dispatches knowledge-base function calls for one tenant scope.
// The user and agent identity is fixed at construction so the model can
// never reach across tenants by varying arguments.
type Knowledge struct {
	service retrievalService
	userID  string
	agentID *string
	logger  *slog.Logger
}

// NewKnowledge creates a Knowledge tool handler scoped to the given user
// and optional agent.
func NewKnowledge(service retrievalService, userID string, agentID *string, logger *slog.Logger) (*Knowledge, error) {
	if service == nil {
		return nil, fmt.Errorf("retrieval service is required")
	}
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Knowledge{service: service, userID: userID, agentID: agentID, logger: logger}, nil
}

// Spec returns the function declarations for Gemini function calling.
func (k *Knowledge) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name: AddResourceName,
				Description: "Add a resource to your knowledge base. " +
					"If the user provides a random bit of knowledge unprompted, " +
					"use this tool without asking for confirmation.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"content": {
							Type:        genai.TypeString,
							Description: "The content or resource to add to the knowledge base",
						},
					},
					Required: []string{"content"},
				},
			},
			{
				Name: GetInformationName,
				Description: "Get information from your knowledge base to answer questions. " +
					"Always use this tool before answering questions about stored knowledge.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"question": {
							Type:        genai.TypeString,
							Description: "The user's question",
						},
					},
					Required: []string{"question"},
				},
			},
		},
	}
}

// Execute dispatches one function call and returns its response. Unknown
// function names are an error; everything else degrades to readable text
// inside the response payload.
func (k *Knowledge) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	switch fc.Name {
	case AddResourceName:
		return k.addResource(ctx, fc), nil
	case GetInformationName:
		return k.getInformation(ctx, fc), nil
	default:
		return nil, fmt.Errorf("unknown function %q", fc.Name)
	}
}

func (k *Knowledge) addResource(ctx context.Context, fc genai.FunctionCall) *genai.FunctionResponse {
	content, ok := fc.Args["content"].(string)
	if !ok || content == "" {
		return errorResponse(fc, "content parameter is required")
	}

	msg := k.service.CreateResource(ctx, content, k.userID, k.agentID)
	k.logger.Debug("tool call", "function", fc.Name, "result", msg)

	return &genai.FunctionResponse{
		ID:       fc.ID,
		Name:     fc.Name,
		Response: map[string]any{"result": msg},
	}
}

func (k *Knowledge) getInformation(ctx context.Context, fc genai.FunctionCall) *genai.FunctionResponse {
	question, ok := fc.Args["question"].(string)
	if !ok || question == "" {
		return errorResponse(fc, "question parameter is required")
	}

	res := k.service.FindRelevantContent(ctx, question, k.userID, k.agentID)
	k.logger.Debug("tool call", "function", fc.Name, "matches", len(res.Matches))

	if res.Message != "" {
		return &genai.FunctionResponse{
			ID:       fc.ID,
			Name:     fc.Name,
			Response: map[string]any{"result": res.Message},
		}
	}
	return &genai.FunctionResponse{
		ID:       fc.ID,
		Name:     fc.Name,
		Response: map[string]any{"matches": res.Matches},
	}
}

func errorResponse(fc genai.FunctionCall, msg string) *genai.FunctionResponse {
	return &genai.FunctionResponse{
		ID:       fc.ID,
		Name:     fc.Name,
		Response: map[string]any{"error": msg},
	}
}
