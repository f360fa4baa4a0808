package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/scribeagent/scribe/internal/agent"
	"github.com/scribeagent/scribe/internal/llm"
	"github.com/scribeagent/scribe/internal/message"
	"github.com/scribeagent/scribe/internal/prompts"
	"github.com/scribeagent/scribe/internal/router"
)

// userHeader scopes a conversation to one frontend user. Absent means
// the shared default conversation.
const userHeader = "X-Scribe-User"

const (
	resultTypeRegular = "regular"
	resultTypeError   = "error"
)

// maxTurnSteps bounds one conversational turn. A turn that keeps
// calling abilities past this is looping, not working.
const maxTurnSteps = 50

// wireMessage is the transport shape of a message: the canonical
// role/parts plus a result-type discriminator that exists only on the
// wire, never in storage.
type wireMessage struct {
	Type  string         `json:"type,omitempty"`
	Role  message.Role   `json:"role"`
	Parts []message.Part `json:"parts"`
}

func toWire(resultType string, m message.Message) wireMessage {
	parts := m.Parts
	if parts == nil {
		parts = []message.Part{}
	}
	return wireMessage{Type: resultType, Role: m.Role, Parts: parts}
}

func (s *Server) userID(r *http.Request) string {
	if u := r.Header.Get(userHeader); u != "" {
		return u
	}
	return "default"
}

func (s *Server) handleMessagesGet(w http.ResponseWriter, r *http.Request) {
	history, err := s.cfg.Store.Load(r.Context(), s.userID(r))
	if err != nil {
		s.logger.Error("failed to load conversation", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	out := make([]wireMessage, 0, len(history))
	for _, m := range history {
		out = append(out, toWire(resultTypeRegular, m))
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, out, s.logger)
}

func (s *Server) handleMessagesReset(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Store.Reset(r.Context(), s.userID(r)); err != nil {
		s.logger.Error("failed to reset conversation", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to reset conversation")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]string{"status": "reset"}, s.logger)
}

// handleMessagesPost appends the inbound message to the conversation,
// runs agent steps until the turn finishes, persists the grown
// trajectory, and replies with the final message. Model failures do not
// fail the request: they become an error-typed message that is stored
// and returned like any other reply.
func (s *Server) handleMessagesPost(w http.ResponseWriter, r *http.Request) {
	var req wireMessage
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Parts) == 0 {
		s.errorResponse(w, http.StatusBadRequest, "parts is required")
		return
	}

	ctx := r.Context()
	userID := s.userID(r)

	history, err := s.cfg.Store.Load(ctx, userID)
	if err != nil {
		s.logger.Error("failed to load conversation", "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}

	inbound := message.ValidateMessage(message.Message{Role: req.Role, Parts: req.Parts})
	trajectory := append(history, inbound)

	ag := agent.New(s.generator(), s.cfg.Registry, trajectory, agent.Options{
		MaxStepRetries:    s.cfg.MaxStepRetries,
		SystemInstruction: s.systemInstruction(),
		Logger:            s.logger,
	})

	resultType := resultTypeRegular
	var stepErr error
	for steps := 0; ; steps++ {
		if steps >= maxTurnSteps {
			stepErr = fmt.Errorf("turn exceeded %d steps", maxTurnSteps)
			break
		}
		res, err := ag.Step(ctx)
		if err != nil {
			stepErr = err
			break
		}
		if res.Exhausted {
			stepErr = errors.New("the model repeatedly called functions that are not available")
			break
		}
		if res.Finished {
			break
		}
	}

	trajectory = ag.Trajectory()
	reply := trajectory[len(trajectory)-1]
	if stepErr != nil {
		s.logger.Error("agent turn failed", "user", userID, "error", stepErr)
		resultType = resultTypeError
		reply = message.NewTextMessage(message.RoleModel,
			fmt.Sprintf("An error occurred while processing the request: %s", stepErr))
		trajectory = append(trajectory, reply)
	}

	if err := s.cfg.Store.Save(ctx, userID, trajectory); err != nil {
		s.logger.Error("failed to persist conversation", "user", userID, "error", err)
		s.errorResponse(w, http.StatusInternalServerError, "failed to persist conversation")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, toWire(resultType, reply), s.logger)
}

func (s *Server) systemInstruction() string {
	if s.cfg.Prompts == nil {
		return ""
	}
	return s.cfg.Prompts.System(prompts.Context{
		SiteURL:  s.cfg.SiteURL,
		SiteName: s.cfg.SiteName,
		Now:      time.Now(),
	})
}

func (s *Server) generator() agent.Generator {
	return &modelGenerator{
		clients:  s.cfg.Clients,
		router:   s.cfg.Router,
		provider: s.cfg.DefaultProvider,
		model:    s.cfg.DefaultModel,
	}
}

// modelGenerator resolves the chat model through the router on every
// generation and dispatches to the matching provider client.
type modelGenerator struct {
	clients  *llm.MultiClient
	router   *router.Router
	provider string
	model    string
}

func (g *modelGenerator) Generate(ctx context.Context, req agent.GenerateRequest) (message.Message, error) {
	sel, _, err := g.router.Resolve(g.provider, g.model)
	if err != nil {
		return message.Message{}, fmt.Errorf("resolve model: %w", err)
	}

	tools := make([]llm.Tool, 0, len(req.Declarations))
	for _, d := range req.Declarations {
		tools = append(tools, llm.Tool(d))
	}

	res, err := g.clients.GenerateWith(ctx, sel.Provider, sel.Model, llm.Request{
		System:   req.SystemInstruction,
		Messages: req.Messages,
		Tools:    tools,
	})
	if err != nil {
		return message.Message{}, err
	}
	return res.Message, nil
}
