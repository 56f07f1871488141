package webhook

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"branchhooks/internal"
	"branchhooks/scm"

	"github.com/ThreeDotsLabs/watermill"
)

// ScmHandler accepts generic SCM branch notifications and publishes them.
type ScmHandler struct {
	rules        *internal.RuleEngine
	publisher    internal.Publisher
	defaultTopic string
	maxBodyBytes int64
	logger       *log.Logger
}

// HandlerConfig configures an ScmHandler.
type HandlerConfig struct {
	Rules        *internal.RuleEngine
	Publisher    internal.Publisher
	DefaultTopic string
	MaxBodyBytes int64
	Logger       *log.Logger
}

// readCloser reads from Reader and closes Closer.
type readCloser struct {
	io.Reader
	io.Closer
}

type response struct {
	RequestID string   `json:"request_id"`
	SCM       string   `json:"scm"`
	Branch    string   `json:"branch"`
	Action    string   `json:"action"`
	Create    bool     `json:"create"`
	Delete    bool     `json:"delete"`
	Topics    []string `json:"topics"`
}

func NewScmHandler(cfg HandlerConfig) (*ScmHandler, error) {
	if cfg.Publisher == nil {
		return nil, errors.New("publisher is required")
	}
	rules := cfg.Rules
	if rules == nil {
		var err error
		rules, err = internal.NewRuleEngine(internal.RulesConfig{Logger: cfg.Logger})
		if err != nil {
			return nil, err
		}
	}
	if rules.Len() == 0 && cfg.DefaultTopic == "" {
		return nil, errors.New("default topic is required when no rules are configured")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &ScmHandler{
		rules:        rules,
		publisher:    cfg.Publisher,
		defaultTopic: cfg.DefaultTopic,
		maxBodyBytes: cfg.MaxBodyBytes,
		logger:       logger,
	}, nil
}

func (h *ScmHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, body, h.maxBodyBytes)
	}
	// Keep a copy of what the parser reads so the raw body can be forwarded.
	var raw bytes.Buffer
	req, err := scm.Parse(readCloser{Reader: io.TeeReader(body, &raw), Closer: body})
	if err != nil {
		h.reject(w, err)
		return
	}
	rawBody := raw.Bytes()

	requestID := r.Header.Get("X-Request-Id")
	if requestID == "" {
		requestID = watermill.NewUUID()
	}
	event := internal.Event{Request: req, RequestID: requestID, RawPayload: rawBody}
	internal.IncRequest(req.SCM())
	internal.IncAction(event.ActionClass())

	topics := h.emit(r, event)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response{
		RequestID: requestID,
		SCM:       req.SCM(),
		Branch:    req.Branch(),
		Action:    req.Action(),
		Create:    req.IsCreate(),
		Delete:    req.IsDelete(),
		Topics:    topics,
	})
}

func (h *ScmHandler) reject(w http.ResponseWriter, err error) {
	kind := "unknown"
	var perr *scm.ParseError
	if errors.As(err, &perr) {
		kind = perr.Kind.String()
	}
	internal.IncParseError(kind)
	h.logger.Printf("scm parse failed: %v", err)
	http.Error(w, err.Error(), http.StatusBadRequest)
}

// emit publishes event to every matching topic and returns the topics used.
// Publish failures are logged; the caller has already been accepted.
func (h *ScmHandler) emit(r *http.Request, event internal.Event) []string {
	matches := h.rules.Evaluate(event.Request)
	if h.rules.Len() == 0 {
		matches = []internal.RuleMatch{{Topic: h.defaultTopic}}
	}
	h.logger.Printf("event request_id=%s %s matches=%d", event.RequestID, event.Request, len(matches))

	topics := make([]string, 0, len(matches))
	for _, match := range matches {
		topics = append(topics, match.Topic)
		if err := h.publisher.PublishForDrivers(r.Context(), match.Topic, event, match.Drivers); err != nil {
			h.logger.Printf("publish %s failed: %v", match.Topic, err)
		}
	}
	return topics
}
