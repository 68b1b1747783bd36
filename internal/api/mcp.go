package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wingmanlabs/wingman/internal/profile"
)

// MCPDeps wires the profile manager and turn pipeline into the MCP tools.
type MCPDeps struct {
	Profiles *profile.Manager
	Turns    *TurnRunner
}

// TurnRunner is the pipeline surface the MCP tools need.
type TurnRunner struct {
	Suggest func(ctx context.Context, userID, theirMessage, who string) ([]string, error)
	Message func(ctx context.Context, userID, message string) (string, error)
}

// NewTurnRunner adapts the turn handler for the MCP layer.
func NewTurnRunner(
	suggest func(ctx context.Context, userID, theirMessage, who string) ([]string, error),
	message func(ctx context.Context, userID, message string) (string, error),
) *TurnRunner {
	return &TurnRunner{Suggest: suggest, Message: message}
}

// NewMCPServer creates an MCP server exposing the assist pipeline as tools,
// so agent clients can draft replies against a stored profile.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"wingman",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("wingman — profile-aware reply suggestions for text conversations."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("suggest_replies",
			mcp.WithDescription("Generate reply suggestions for a message someone sent, matched to the stored profile's texting style."),
			mcp.WithString("user_id", mcp.Description("Profile id to style-match against"), mcp.Required()),
			mcp.WithString("their_message", mcp.Description("The message to reply to"), mcp.Required()),
			mcp.WithString("who", mcp.Description("Who sent it (e.g. \"my crush\", \"my ex\", \"a friend\")")),
		),
		mcpSuggestReplies(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_wingman",
			mcp.WithDescription("Ask for texting advice in the assistant's chat voice."),
			mcp.WithString("user_id", mcp.Description("Profile id"), mcp.Required()),
			mcp.WithString("message", mcp.Description("What's going on"), mcp.Required()),
		),
		mcpAskWingman(deps),
	)

	s.AddTool(
		mcp.NewTool("get_profile",
			mcp.WithDescription("Fetch a stored texting profile as JSON."),
			mcp.WithString("user_id", mcp.Description("Profile id"), mcp.Required()),
		),
		mcpGetProfile(deps),
	)

	s.AddTool(
		mcp.NewTool("update_profile",
			mcp.WithDescription("Apply a partial update to a stored profile. Accepts the same fields as the settings screen."),
			mcp.WithString("user_id", mcp.Description("Profile id"), mcp.Required()),
			mcp.WithString("patch", mcp.Description("JSON object of fields to change"), mcp.Required()),
		),
		mcpUpdateProfile(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"user://profile/{id}",
			"Texting Profile",
			mcp.WithResourceDescription("Stored texting profile as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProfile(deps),
	)

	return s
}

func mcpSuggestReplies(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		theirMessage, err := req.RequireString("their_message")
		if err != nil {
			return mcpError("their_message is required"), nil
		}
		who := req.GetString("who", "")

		suggestions, err := deps.Turns.Suggest(ctx, userID, theirMessage, who)
		if err != nil {
			return mcpError(fmt.Sprintf("suggesting replies: %v", err)), nil
		}

		b, err := json.Marshal(map[string][]string{"suggestions": suggestions})
		if err != nil {
			return mcpError(fmt.Sprintf("marshaling suggestions: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpAskWingman(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		message, err := req.RequireString("message")
		if err != nil {
			return mcpError("message is required"), nil
		}

		reply, err := deps.Turns.Message(ctx, userID, message)
		if err != nil {
			return mcpError(fmt.Sprintf("running turn: %v", err)), nil
		}
		return mcpText(reply), nil
	}
}

func mcpGetProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}

		p, err := deps.Profiles.Get(userID)
		if err != nil {
			return mcpError(fmt.Sprintf("loading profile: %v", err)), nil
		}
		b, err := json.Marshal(p)
		if err != nil {
			return mcpError(fmt.Sprintf("marshaling profile: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpUpdateProfile(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		userID, err := req.RequireString("user_id")
		if err != nil {
			return mcpError("user_id is required"), nil
		}
		patchJSON, err := req.RequireString("patch")
		if err != nil {
			return mcpError("patch is required"), nil
		}

		var patch profile.Patch
		if err := json.Unmarshal([]byte(patchJSON), &patch); err != nil {
			return mcpError(fmt.Sprintf("invalid patch JSON: %v", err)), nil
		}
		if err := validatePatch(patch); err != nil {
			return mcpError(err.Error()), nil
		}

		if err := deps.Profiles.Apply(userID, patch); err != nil {
			return mcpError(fmt.Sprintf("applying patch: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("updated profile %s", userID)), nil
	}
}

func mcpResourceProfile(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		userID := strings.TrimPrefix(req.Params.URI, "user://profile/")
		if userID == "" || strings.Contains(userID, "/") {
			return nil, fmt.Errorf("profile id is required")
		}

		p, err := deps.Profiles.Get(userID)
		if err != nil {
			return nil, fmt.Errorf("loading profile: %w", err)
		}
		b, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("marshaling profile: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
