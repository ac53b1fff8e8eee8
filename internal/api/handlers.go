package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/CampusPe/ResumeBot/internal/messaging"
	"github.com/CampusPe/ResumeBot/internal/models"
)

// webhookHandler accepts inbound WhatsApp messages relayed by the WABB
// automation and enqueues them for flow processing.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var msg models.WebhookMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		slog.Warn("API webhook invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid JSON payload"))
		return
	}
	if err := msg.Validate(); err != nil {
		slog.Warn("API webhook invalid payload", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	canonical, err := messaging.CanonicalizePhoneNumber(msg.Phone)
	if err != nil {
		slog.Warn("API webhook invalid phone", "error", err, "phone", msg.Phone)
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
		return
	}

	response := models.Response{
		From: canonical,
		Name: msg.Name,
		Body: msg.Message,
		Time: time.Now().Unix(),
	}

	// The WABB service feeds its responses channel, which the inbound
	// processor consumes. Other transports receive inbound messages through
	// their own event streams, so this endpoint routes straight to the flow.
	if wabbSvc, ok := s.msgService.(*messaging.WABBService); ok {
		wabbSvc.EmitResponse(response)
	} else if s.flowEngine != nil {
		if err := s.flowEngine.HandleMessage(r.Context(), response.From, response.Name, response.Body); err != nil {
			slog.Error("API webhook flow handling failed", "error", err, "from", response.From)
			writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to process message"))
			return
		}
	}

	writeJSONResponse(w, http.StatusOK, models.Accepted())
}

// healthHandler reports liveness.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{"service": "resumebot"}))
}

// conversationsHandler lists all active conversations.
func (s *Server) conversationsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	conversations, err := s.st.ListConversations()
	if err != nil {
		slog.Error("API failed to list conversations", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to list conversations"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(conversations))
}

// receiptsHandler lists recorded outbound delivery receipts.
func (s *Server) receiptsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	receipts, err := s.st.GetReceipts()
	if err != nil {
		slog.Error("API failed to get receipts", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to get receipts"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(receipts))
}

// responsesHandler lists recorded inbound messages.
func (s *Server) responsesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	responses, err := s.st.GetResponses()
	if err != nil {
		slog.Error("API failed to get responses", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to get responses"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(responses))
}

// sendRequest is the payload for the manual send endpoint.
type sendRequest struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// sendHandler sends an ad-hoc outbound message, mainly for operational checks.
func (s *Server) sendHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("invalid JSON payload"))
		return
	}
	if req.To == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrEmptyRecipient.Error()))
		return
	}
	if req.Body == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error(models.ErrEmptyMessage.Error()))
		return
	}

	if err := s.msgService.SendMessage(r.Context(), req.To, req.Body); err != nil {
		slog.Error("API send failed", "error", err, "to", req.To)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("failed to send message"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}

// timersHandler lists pending cleanup timers for diagnostics.
func (s *Server) timersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	if s.timer == nil {
		writeJSONResponse(w, http.StatusOK, models.Success([]models.TimerInfo{}))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(s.timer.ListActive()))
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSONResponse(w, http.StatusMethodNotAllowed, models.Error("method not allowed"))
}
