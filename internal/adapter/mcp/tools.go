package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/Strob0t/ClaimDesk/internal/domain"
	"github.com/Strob0t/ClaimDesk/internal/domain/payload"
	"github.com/Strob0t/ClaimDesk/internal/domain/schema"
	"github.com/Strob0t/ClaimDesk/internal/service"
)

// registerTools registers one tool per specialist. The input schema is the
// specialist's delegation action.
func (s *Server) registerTools() error {
	schemas := s.registry.Schemas()
	tools := make([]mcpserver.ServerTool, 0, len(schemas))
	for _, sch := range schemas {
		tool, err := s.specialistTool(sch)
		if err != nil {
			return err
		}
		tools = append(tools, tool)
	}
	s.mcpServer.AddTools(tools...)
	return nil
}

func (s *Server) specialistTool(sch *schema.Schema) (mcpserver.ServerTool, error) {
	raw, err := json.Marshal(sch.Action.Parameters)
	if err != nil {
		return mcpserver.ServerTool{}, fmt.Errorf("marshal %s input schema: %w", sch.Skill, err)
	}
	return mcpserver.ServerTool{
		Tool:    mcplib.NewToolWithRawSchema(sch.Skill, sch.Action.Description, raw),
		Handler: s.decideHandler(sch),
	}, nil
}

func (s *Server) decideHandler(sch *schema.Schema) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
		request, _ := sch.Action.Complete(payload.Fields(req.GetArguments()), nil)
		res, err := s.specialists.Decide(ctx, service.DecisionRequest{
			Specialist: sch.Specialist,
			Payload:    request,
		})
		if res == nil {
			return mcplib.NewToolResultErrorFromErr(fmt.Sprintf("%s failed", sch.Skill), err), nil
		}
		if errors.Is(err, domain.ErrInferenceUnavailable) {
			return mcplib.NewToolResultError(res.Reply), nil
		}
		if err != nil {
			slog.InfoContext(ctx, "mcp specialist recovered", "tool", sch.Skill, "error", err)
		}
		data, err := json.Marshal(res)
		if err != nil {
			return mcplib.NewToolResultErrorFromErr("failed to marshal decision", err), nil
		}
		return toolResultJSON(string(data)), nil
	}
}

func toolResultJSON(data string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: data},
		},
	}
}
