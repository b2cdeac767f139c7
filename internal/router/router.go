package router

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xaitan80/rawhttpd/internal/headers"
	"github.com/xaitan80/rawhttpd/internal/request"
	"github.com/xaitan80/rawhttpd/internal/response"
	"github.com/xaitan80/rawhttpd/internal/server"
	"github.com/xaitan80/rawhttpd/internal/store"
)

const (
	WelcomeText    = "Welcome to my custom HTTP server!"
	DefaultEchoMsg = "No message given"

	dataPath       = "/data"
	dataItemPrefix = dataPath + "/"
	allowedMethods = "GET, POST, DELETE"
)

// Records is the storage the /data routes work against.
type Records interface {
	Append(rec json.RawMessage) int
	List() []json.RawMessage
	Get(index int) (json.RawMessage, error)
	Delete(index int) error
}

type errorBody struct {
	Error string `json:"error"`
}

type messageBody struct {
	Message string `json:"message"`
	Index   *int   `json:"index,omitempty"`
}

// reply is a successful route outcome.
type reply struct {
	status      response.StatusCode
	body        any
	contentType string
}

// Router maps (method, path) to the server's behaviors.
type Router struct {
	records Records
	log     *slog.Logger
}

func New(records Records, log *slog.Logger) *Router {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Router{records: records, log: log}
}

// Handle is a server.Handler.
func (rt *Router) Handle(r *request.Request, w *response.Writer) *server.HandlerError {
	rep, herr := rt.route(r)
	if herr != nil {
		return herr
	}
	if err := w.Write(rep.status, nil, rep.body, rep.contentType); err != nil {
		rt.log.Warn("write response",
			"method", r.RequestLine.Method,
			"target", r.RequestLine.RequestTarget,
			"error", err,
		)
	}
	return nil
}

func (rt *Router) route(r *request.Request) (reply, *server.HandlerError) {
	path := r.Path()
	switch r.RequestLine.Method {
	case "GET":
		switch {
		case path == "/":
			return reply{status: response.StatusOK, body: WelcomeText, contentType: response.ContentTypeText}, nil
		case path == "/echo":
			return rt.echo(r), nil
		case path == dataPath:
			return reply{status: response.StatusOK, body: rt.records.List()}, nil
		case strings.HasPrefix(path, dataItemPrefix):
			return rt.getItem(path)
		}
	case "POST":
		if path == dataPath {
			return rt.create(r)
		}
	case "DELETE":
		if strings.HasPrefix(path, dataItemPrefix) {
			return rt.deleteItem(path)
		}
	default:
		h := headers.NewHeaders()
		h.Set("Allow", allowedMethods)
		return reply{}, &server.HandlerError{
			Status:  response.StatusMethodNotAllowed,
			Headers: h,
			Body:    errorBody{Error: "Method not allowed"},
		}
	}
	return reply{}, fail(response.StatusNotFound, "Not found")
}

// echo splits the whole query string at its first '=' and, when the key is
// msg, answers with everything after it ("msg=a&b=c" gives "a&b=c"). Nothing
// is percent-decoded.
func (rt *Router) echo(r *request.Request) reply {
	msg := DefaultEchoMsg
	if q, ok := r.RawQuery(); ok {
		if key, val, ok := strings.Cut(q, "="); ok && key == "msg" {
			msg = request.Latin1ToUTF8(val)
		}
	}
	return reply{status: response.StatusOK, body: msg, contentType: response.ContentTypeText}
}

func (rt *Router) getItem(path string) (reply, *server.HandlerError) {
	id, ok := itemID(path)
	if !ok {
		return reply{}, itemNotFound()
	}
	rec, err := rt.records.Get(id)
	if err != nil {
		return reply{}, storeFailure(err)
	}
	return reply{status: response.StatusOK, body: rec}, nil
}

func (rt *Router) create(r *request.Request) (reply, *server.HandlerError) {
	if !isJSON(r.Headers.Get("Content-Type")) {
		return reply{}, fail(response.StatusBadRequest, "Content-Type must be application/json")
	}
	if !json.Valid(r.Body) {
		return reply{}, fail(response.StatusBadRequest, "Invalid JSON")
	}
	idx := rt.records.Append(json.RawMessage(r.Body))
	return reply{status: response.StatusOK, body: messageBody{Message: "Data stored", Index: &idx}}, nil
}

func (rt *Router) deleteItem(path string) (reply, *server.HandlerError) {
	id, ok := itemID(path)
	if !ok {
		return reply{}, itemNotFound()
	}
	if err := rt.records.Delete(id); err != nil {
		return reply{}, storeFailure(err)
	}
	return reply{status: response.StatusOK, body: messageBody{Message: "Item deleted"}}, nil
}

// itemID extracts <id> from /data/<id>. The token must be all ASCII digits.
func itemID(path string) (int, bool) {
	tok := strings.TrimPrefix(path, dataItemPrefix)
	if tok == "" {
		return 0, false
	}
	for i := 0; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return 0, false
		}
	}
	id, err := strconv.Atoi(tok)
	if err != nil {
		return 0, false
	}
	return id, true
}

// isJSON compares the media type only, so parameters such as charset pass.
func isJSON(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	return strings.EqualFold(strings.TrimSpace(mediaType), response.ContentTypeJSON)
}

func fail(status response.StatusCode, msg string) *server.HandlerError {
	return &server.HandlerError{Status: status, Body: errorBody{Error: msg}}
}

func itemNotFound() *server.HandlerError {
	return fail(response.StatusNotFound, "Item not found")
}

func storeFailure(err error) *server.HandlerError {
	if errors.Is(err, store.ErrNotFound) {
		return itemNotFound()
	}
	return fail(response.StatusInternalServerError, "Internal server error")
}
