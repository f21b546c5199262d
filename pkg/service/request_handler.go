package service

import (
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lwm2m-go/lwm2m-client/pkg/bootstrap"
	"github.com/lwm2m-go/lwm2m-client/pkg/identity"
	"github.com/lwm2m-go/lwm2m-client/pkg/log"
	"github.com/lwm2m-go/lwm2m-client/pkg/objects"
	"github.com/lwm2m-go/lwm2m-client/pkg/wire"
)

// RequestHandler handles requests decoded by the transport. Bootstrap
// operations go to the session coordinator, everything else to the object
// model.
type RequestHandler struct {
	session *bootstrap.Handler
	objects ObjectModel

	endpoint       string
	logger         *slog.Logger
	protocolLogger log.Logger
}

// NewRequestHandler creates a request handler.
func NewRequestHandler(session *bootstrap.Handler, model ObjectModel, endpoint string, logger *slog.Logger, protocolLogger log.Logger) *RequestHandler {
	return &RequestHandler{
		session:        session,
		objects:        model,
		endpoint:       endpoint,
		logger:         logger,
		protocolLogger: log.OrNoop(protocolLogger),
	}
}

// HandleRequest processes a request from origin and returns the response to
// send back. Requests without an ID get one assigned.
func (h *RequestHandler) HandleRequest(origin identity.Identity, req *wire.Request) *wire.Response {
	start := time.Now()
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	h.logRequest(origin, req)

	resp := h.route(origin, req)

	h.logResponse(origin, req, resp, time.Since(start))
	return resp
}

func (h *RequestHandler) route(origin identity.Identity, req *wire.Request) *wire.Response {
	if err := req.Validate(); err != nil {
		return wire.BadRequest(err.Error())
	}

	switch req.Operation {
	case wire.OpBootstrapFinish:
		return h.handleBootstrapFinish(origin)
	case wire.OpBootstrapDelete:
		return h.handleBootstrapDelete(origin)
	case wire.OpRead:
		return h.objects.Read(req.Path)
	case wire.OpWrite:
		return h.objects.Write(req.Path, *req.Value)
	case wire.OpExecute:
		return h.objects.Execute(req.Path, req.Params)
	case wire.OpDelete:
		return h.handleDelete(origin, req)
	default:
		return wire.BadRequest("unsupported operation")
	}
}

func (h *RequestHandler) handleBootstrapFinish(origin identity.Identity) *wire.Response {
	if err := h.session.Finish(origin); err != nil {
		return rejectionResponse(err)
	}
	return wire.Changed()
}

func (h *RequestHandler) handleBootstrapDelete(origin identity.Identity) *wire.Response {
	if err := h.session.Delete(origin); err != nil {
		return rejectionResponse(err)
	}
	return wire.Deleted()
}

func (h *RequestHandler) handleDelete(origin identity.Identity, req *wire.Request) *wire.Response {
	err := h.objects.DeleteInstance(*req.Path.ObjectID, *req.Path.InstanceID, origin)
	switch {
	case err == nil:
		return wire.Deleted()
	case errors.Is(err, objects.ErrObjectNotFound), errors.Is(err, objects.ErrInstanceNotFound):
		return wire.NotFound(err.Error())
	default:
		h.debugLog("delete failed", "path", req.Path.String(), "error", err)
		return wire.InternalServerError(err.Error())
	}
}

func rejectionResponse(err error) *wire.Response {
	var rej *bootstrap.Rejection
	if errors.As(err, &rej) {
		return rej.Response()
	}
	return wire.InternalServerError(err.Error())
}

func (h *RequestHandler) sessionIDFor(req *wire.Request) string {
	if !req.Operation.IsBootstrap() && !h.session.IsActive() {
		return ""
	}
	return h.session.SessionID()
}

func (h *RequestHandler) logRequest(origin identity.Identity, req *wire.Request) {
	h.protocolLogger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  h.sessionIDFor(req),
		Direction:  log.DirectionIn,
		Layer:      log.LayerMessage,
		Category:   log.CategoryMessage,
		RemoteAddr: origin.PeerAddress.String(),
		Endpoint:   h.endpoint,
		Message: &log.MessageEvent{
			Type:      log.MessageTypeRequest,
			RequestID: req.ID,
			Operation: req.Operation,
			Path:      req.Path.String(),
		},
	})
}

func (h *RequestHandler) logResponse(origin identity.Identity, req *wire.Request, resp *wire.Response, elapsed time.Duration) {
	code := resp.Code
	h.protocolLogger.Log(log.Event{
		Timestamp:  time.Now(),
		SessionID:  h.sessionIDFor(req),
		Direction:  log.DirectionOut,
		Layer:      log.LayerMessage,
		Category:   log.CategoryMessage,
		RemoteAddr: origin.PeerAddress.String(),
		Endpoint:   h.endpoint,
		Message: &log.MessageEvent{
			Type:           log.MessageTypeResponse,
			RequestID:      req.ID,
			Operation:      req.Operation,
			Path:           req.Path.String(),
			Code:           &code,
			Reason:         resp.Reason,
			ProcessingTime: &elapsed,
		},
	})

	h.debugLog("request handled",
		"op", req.Operation,
		"path", req.Path.String(),
		"code", resp.Code,
		"origin", origin)
}

func (h *RequestHandler) debugLog(msg string, args ...any) {
	if h.logger != nil {
		h.logger.Debug(msg, args...)
	}
}
