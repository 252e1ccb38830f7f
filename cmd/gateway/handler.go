// In file: cmd/gateway/handler.go
package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/dileep-u-k/notion-gateway/internal/actions"
	"github.com/dileep-u-k/notion-gateway/internal/integrations"
	"github.com/dileep-u-k/notion-gateway/internal/intent"
	"github.com/dileep-u-k/notion-gateway/internal/result"
	"github.com/dileep-u-k/notion-gateway/internal/tools"
	"github.com/dileep-u-k/notion-gateway/internal/upstream"

	"github.com/gin-gonic/gin"
)

// ToolDispatcher executes one model-emitted tool invocation. Satisfied by
// *dispatch.Dispatcher.
type ToolDispatcher interface {
	Dispatch(ctx context.Context, userID, name, rawArgs string) result.Normalized
}

// IntegrationStore is the slice of the record store the HTTP surface needs.
// Satisfied by *integrations.Store; nil when the gateway runs with the
// environment-variable credential source.
type IntegrationStore interface {
	Create(ctx context.Context, rec integrations.Record) (*integrations.Record, error)
	GetActive(ctx context.Context, userID, serviceType string) (*integrations.Record, error)
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, userID, id string) error
	List(ctx context.Context, userID string) ([]*integrations.Record, error)
}

// GatewayHandler wires the request-scoped flow: intent matching on the way
// out, tool-call interception on the way back, plus the integration
// management surface the host UI talks to.
type GatewayHandler struct {
	upstream      *upstream.Client
	matcher       *intent.Matcher
	dispatcher    ToolDispatcher
	credentials   integrations.CredentialProvider
	store         IntegrationStore
	registry      *actions.Registry
	maxToolRounds int
}

func NewGatewayHandler(
	upstreamClient *upstream.Client,
	matcher *intent.Matcher,
	dispatcher ToolDispatcher,
	credentials integrations.CredentialProvider,
	store IntegrationStore,
	registry *actions.Registry,
	maxToolRounds int,
) *GatewayHandler {
	if maxToolRounds <= 0 {
		maxToolRounds = 5
	}
	return &GatewayHandler{
		upstream:      upstreamClient,
		matcher:       matcher,
		dispatcher:    dispatcher,
		credentials:   credentials,
		store:         store,
		registry:      registry,
		maxToolRounds: maxToolRounds,
	}
}

// RegisterRoutes attaches all handlers under /api/v1.
func (h *GatewayHandler) RegisterRoutes(engine *gin.Engine) {
	v1 := engine.Group("/api/v1")
	{
		v1.POST("/chat/completions", h.HandleChatCompletions)

		n := v1.Group("/integrations/notion")
		{
			n.GET("", h.HandleListIntegrations)
			n.GET("/status", h.HandleStatus)
			n.POST("/connect", h.HandleConnect)
			n.POST("/disconnect", h.HandleDisconnect)
			n.DELETE("/:integration_id", h.HandleDeleteIntegration)
			n.GET("/actions", h.HandleListActions)
			n.POST("/execute", h.HandleExecuteInfo)
		}
	}
}

// userID extracts the caller identity the host attaches to every request.
func userID(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader("X-User-Id"))
}

// HandleChatCompletions is the host pipeline's entry point. The payload is an
// opaque chat-completion object; the gateway augments it (tools + tool_choice),
// forwards it upstream, executes any registered tool calls the model emits,
// and loops until the model produces a plain answer or the round bound hits.
func (h *GatewayHandler) HandleChatCompletions(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing X-User-Id header"})
		return
	}

	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	// A credential-store failure must not break chat; the payload simply
	// goes out unaugmented, exactly as for a user with no integration.
	connected := false
	if _, found, err := h.credentials.ActiveCredential(c.Request.Context(), uid); err != nil {
		log.Printf("WARNING: credential lookup failed for user %s: %v", uid, err)
	} else {
		connected = found
	}
	h.matcher.Augment(payload, connected)

	if stream, _ := payload["stream"].(bool); stream {
		// Streaming responses are relayed untouched; tool interception is
		// a non-streaming concern.
		h.proxyStream(c, payload)
		return
	}

	for round := 0; round < h.maxToolRounds; round++ {
		resp, err := h.upstream.Complete(c.Request.Context(), payload)
		if err != nil {
			h.relayUpstreamError(c, err)
			return
		}

		message, calls := upstream.ExtractToolCalls(resp)
		if len(calls) == 0 || !h.allRegistered(calls) {
			// Either a final answer, or tool calls that belong to the
			// host's own plugin framework. Both go back untouched.
			c.JSON(http.StatusOK, resp)
			return
		}

		messages, _ := payload["messages"].([]any)
		messages = append(messages, message)
		for _, call := range calls {
			res := h.dispatcher.Dispatch(c.Request.Context(), uid, call.Function.Name, call.Function.Arguments)
			messages = append(messages, map[string]any{
				"role":         "tool",
				"tool_call_id": call.ID,
				"content":      res.ModelText(),
			})
		}
		payload["messages"] = messages

		// A forced directive is satisfied after one execution; leaving it
		// in place would force the same call forever.
		if _, forced := payload["tool_choice"].(map[string]any); forced {
			payload["tool_choice"] = "auto"
		}
	}

	c.JSON(http.StatusBadGateway, gin.H{"error": "exceeded maximum number of tool rounds"})
}

// allRegistered reports whether every tool call in the turn resolves against
// the action registry (aliases included).
func (h *GatewayHandler) allRegistered(calls []tools.ToolCall) bool {
	for _, call := range calls {
		if _, ok := h.registry.Resolve(call.Function.Name); !ok {
			return false
		}
	}
	return true
}

func (h *GatewayHandler) proxyStream(c *gin.Context, payload map[string]any) {
	resp, err := h.upstream.Stream(c.Request.Context(), payload)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	defer resp.Body.Close()

	c.Status(resp.StatusCode)
	if contentType := resp.Header.Get("Content-Type"); contentType != "" {
		c.Header("Content-Type", contentType)
	}
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		log.Printf("WARNING: stream relay interrupted: %v", err)
	}
}

func (h *GatewayHandler) relayUpstreamError(c *gin.Context, err error) {
	if statusErr, ok := err.(*upstream.StatusError); ok {
		c.JSON(statusErr.StatusCode, gin.H{"error": statusErr.Body})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
}

// HandleStatus reports whether the caller has an active Notion integration.
// Token material is never part of the response.
func (h *GatewayHandler) HandleStatus(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing X-User-Id header"})
		return
	}

	if h.store == nil {
		// Environment-token deployments are connected by definition.
		c.JSON(http.StatusOK, gin.H{"integration": nil, "is_connected": true})
		return
	}

	rec, err := h.store.GetActive(c.Request.Context(), uid, integrations.ServiceNotion)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check integration status"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusOK, gin.H{"integration": nil, "is_connected": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"integration": rec, "is_connected": true})
}

type connectRequest struct {
	AccessToken   string `json:"access_token" binding:"required"`
	WorkspaceID   string `json:"workspace_id"`
	WorkspaceName string `json:"workspace_name"`
	WorkspaceIcon string `json:"workspace_icon"`
}

// HandleConnect stores the credential produced by the host's OAuth flow and
// activates the integration. Any previously active record is deactivated by
// the store, keeping one active record per (user, service).
func (h *GatewayHandler) HandleConnect(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing X-User-Id header"})
		return
	}
	if h.store == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "integration management is disabled: gateway uses an environment token"})
		return
	}

	var req connectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	rec, err := h.store.Create(c.Request.Context(), integrations.Record{
		UserID:        uid,
		ServiceType:   integrations.ServiceNotion,
		AccessToken:   req.AccessToken,
		WorkspaceID:   req.WorkspaceID,
		WorkspaceName: req.WorkspaceName,
		WorkspaceIcon: req.WorkspaceIcon,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store integration"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"integration": rec, "is_connected": true})
}

// HandleDisconnect deactivates the caller's active Notion integration.
func (h *GatewayHandler) HandleDisconnect(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing X-User-Id header"})
		return
	}
	if h.store == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "integration management is disabled: gateway uses an environment token"})
		return
	}

	rec, err := h.store.GetActive(c.Request.Context(), uid, integrations.ServiceNotion)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check integration status"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No active Notion integration found"})
		return
	}
	if err := h.store.Deactivate(c.Request.Context(), rec.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to disconnect integration"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Notion integration disconnected successfully"})
}

// HandleListIntegrations returns every record the caller owns, active or not,
// so the UI can show connection history. Token material is never part of the
// response.
func (h *GatewayHandler) HandleListIntegrations(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing X-User-Id header"})
		return
	}
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"integrations": []any{}})
		return
	}

	records, err := h.store.List(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list integrations"})
		return
	}
	if records == nil {
		records = []*integrations.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"integrations": records})
}

// HandleDeleteIntegration removes one of the caller's records entirely,
// active pointer included. A record owned by another user is reported as not
// found, not forbidden, so ids cannot be probed.
func (h *GatewayHandler) HandleDeleteIntegration(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing X-User-Id header"})
		return
	}
	if h.store == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "integration management is disabled: gateway uses an environment token"})
		return
	}

	id := c.Param("integration_id")
	if err := h.store.Delete(c.Request.Context(), uid, id); err != nil {
		if errors.Is(err, integrations.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Integration not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete integration"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Integration deleted successfully"})
}

// HandleListActions enumerates the registry for UI display.
func (h *GatewayHandler) HandleListActions(c *gin.Context) {
	decls := h.registry.Declarations()
	out := make([]gin.H, 0, len(decls))
	for _, decl := range decls {
		out = append(out, gin.H{
			"name":        decl.Name,
			"description": decl.Description,
			"aliases":     decl.Aliases,
			"enabled":     true,
		})
	}
	c.JSON(http.StatusOK, gin.H{"actions": out})
}

// HandleExecuteInfo describes the wire mapping of a requested action without
// executing anything. The action field is mandatory; an unrecognized action
// gets the full endpoint table so callers can self-correct.
func (h *GatewayHandler) HandleExecuteInfo(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	action, _ := body["action"].(string)
	if action == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required field: action"})
		return
	}

	if decl, ok := h.registry.Resolve(action); ok {
		c.JSON(http.StatusOK, gin.H{
			"message":          "This endpoint provides information about API endpoints without executing actions.",
			"requested_action": action,
			"endpoint_info":    endpointInfo(decl),
		})
		return
	}

	available := make(map[string]gin.H, h.registry.Count())
	for _, decl := range h.registry.Declarations() {
		available[decl.Name] = endpointInfo(decl)
	}
	c.JSON(http.StatusOK, gin.H{
		"message":             "This endpoint provides information about API endpoints without executing actions.",
		"available_endpoints": available,
	})
}

func endpointInfo(decl *actions.Declaration) gin.H {
	params := decl.ParamNames()
	if params == nil {
		params = []string{}
	}
	return gin.H{
		"endpoint": strings.TrimPrefix(decl.Path, "/"),
		"method":   decl.Method,
		"params":   params,
	}
}
