package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/hrygo/famulus/ai/dispatch"
	"github.com/hrygo/famulus/ai/llm"
	"github.com/hrygo/famulus/ai/modes"
	"github.com/hrygo/famulus/ai/prompt"
)

// completionRequest is the inbound submit payload. Either mode or an
// explicit provider/model override selects the backend.
type completionRequest struct {
	Mode     string        `json:"mode"`
	Provider string        `json:"provider"`
	Model    string        `json:"model"`
	Options  *llm.Options  `json:"options"`
	Priority int           `json:"priority"`
	Context  promptContext `json:"context"`
}

type promptContext struct {
	Persona   string                 `json:"persona"`
	Rules     string                 `json:"rules"`
	Memories  []prompt.MemorySnippet `json:"memories"`
	Summaries []string               `json:"summaries"`
	History   []chatMessage          `json:"history"`
	Query     string                 `json:"query"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionResponse struct {
	TaskID string `json:"task_id"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// handleSubmit resolves, prompts, and enqueues one completion request.
// Resolution and templating errors surface synchronously here and never
// reach a queue.
func (s *Server) handleSubmit(c echo.Context) error {
	var req completionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "malformed request body"})
	}
	if req.Context.Query == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Message: "context.query is required"})
	}

	spec, err := s.resolver.ResolveRequest(modes.Request{
		Mode:     req.Mode,
		Provider: req.Provider,
		Model:    req.Model,
		Options:  req.Options,
	})
	if err != nil {
		return s.writeError(c, err)
	}

	providerSpec, ok := s.modesCfg.Provider(spec.Provider)
	if !ok {
		return s.writeError(c, errors.Wrapf(dispatch.ErrUnknownProvider, "provider %q", spec.Provider))
	}

	history := make([]llm.Message, len(req.Context.History))
	for i, m := range req.Context.History {
		history[i] = llm.Message{Role: m.Role, Content: m.Content}
	}

	payload, err := s.builder.Build(spec.Provider, resolvedMode(req.Mode), providerSpec.Format, &prompt.Context{
		Persona:   req.Context.Persona,
		Rules:     req.Context.Rules,
		Memories:  req.Context.Memories,
		Summaries: req.Context.Summaries,
		History:   history,
		Query:     req.Context.Query,
		Now:       time.Now(),
	})
	if err != nil {
		return s.writeError(c, err)
	}

	taskID, err := s.dispatcher.Submit(dispatch.SubmitRequest{
		Provider: spec.Provider,
		Model:    spec.Model,
		Options:  spec.Options,
		Payload:  *payload,
		Priority: req.Priority,
	})
	if err != nil {
		return s.writeError(c, err)
	}

	return c.JSON(http.StatusAccepted, completionResponse{TaskID: taskID})
}

func (s *Server) handleTaskStatus(c echo.Context) error {
	view, err := s.dispatcher.Status(c.Param("id"))
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(http.StatusOK, view)
}

func (s *Server) handleTaskCancel(c echo.Context) error {
	if err := s.dispatcher.Cancel(c.Param("id")); err != nil {
		return s.writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleQueues(c echo.Context) error {
	return c.JSON(http.StatusOK, s.dispatcher.ListStatus())
}

// resolvedMode maps an empty inbound mode to the default mode name so the
// template lookup matches what the resolver assumed.
func resolvedMode(mode string) string {
	if mode == "" {
		return modes.DefaultMode
	}
	return mode
}

// writeError maps core errors to HTTP statuses.
func (s *Server) writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, dispatch.ErrTaskNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Message: err.Error()})
	case errors.Is(err, dispatch.ErrNotCancelable):
		return c.JSON(http.StatusConflict, errorResponse{Message: err.Error()})
	case errors.Is(err, modes.ErrUnknownMode),
		errors.Is(err, dispatch.ErrUnknownProvider),
		errors.Is(err, prompt.ErrTemplateNotFound):
		return c.JSON(http.StatusBadRequest, errorResponse{Message: err.Error()})
	case errors.Is(err, dispatch.ErrStopped):
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Message: err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, errorResponse{Message: err.Error()})
	}
}
