package graphql

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	gql "github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/playground"

	"github.com/tjfontaine/pipegraph/internal/server"
)

// maxBodyBytes bounds a POST body.
const maxBodyBytes = 1 << 20

// Handler serves GraphQL over HTTP. POST accepts application/json bodies;
// GET reads query, operationName and variables from the URL and may not run
// mutations.
type Handler struct {
	executor *Executor
	logger   *slog.Logger
}

// NewHandler creates a handler.
func NewHandler(executor *Executor, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{executor: executor, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params, status, err := readParams(w, r)
	if err != nil {
		server.AddError(r.Context(), err)
		if status == http.StatusMethodNotAllowed {
			w.Header().Set("Allow", "GET, POST")
		}
		h.write(w, status, errorResponse(codedError(CodeBadRequest, err.Error())))
		return
	}

	var resp *gql.Response
	if r.Method == http.MethodGet {
		resp = h.executor.ExecuteReadOnly(r.Context(), params)
	} else {
		resp = h.executor.Execute(r.Context(), params)
	}

	status = http.StatusOK
	if resp.Data == nil && len(resp.Errors) > 0 {
		// Nothing was executed: the document or request was rejected.
		status = http.StatusBadRequest
	}
	h.write(w, status, resp)
}

func (h *Handler) write(w http.ResponseWriter, status int, resp *gql.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to write graphql response", slog.String("error", err.Error()))
	}
}

func readParams(w http.ResponseWriter, r *http.Request) (*gql.RawParams, int, error) {
	params := &gql.RawParams{}

	switch r.Method {
	case http.MethodGet:
		query := r.URL.Query()
		params.Query = query.Get("query")
		params.OperationName = query.Get("operationName")
		if raw := query.Get("variables"); raw != "" {
			d := json.NewDecoder(strings.NewReader(raw))
			d.UseNumber()
			if err := d.Decode(&params.Variables); err != nil {
				return nil, http.StatusBadRequest, fmt.Errorf("variables are not valid JSON: %w", err)
			}
		}

	case http.MethodPost:
		mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			return nil, http.StatusUnsupportedMediaType, fmt.Errorf("unable to parse media type: %w", err)
		}
		if mediaType != "application/json" {
			return nil, http.StatusUnsupportedMediaType,
				errors.New("unrecognised Content-Type, use application/json for GraphQL requests")
		}
		d := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		d.UseNumber()
		if err := d.Decode(params); err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("not a valid GraphQL request body: %w", err)
		}

	default:
		return nil, http.StatusMethodNotAllowed,
			errors.New("unrecognised request method, use GET or POST for GraphQL requests")
	}

	if strings.TrimSpace(params.Query) == "" {
		return nil, http.StatusBadRequest, errors.New("query is required")
	}
	return params, 0, nil
}

// PlaygroundHandler serves the GraphQL playground for endpoint.
func PlaygroundHandler(title, endpoint string) http.HandlerFunc {
	return playground.Handler(title, endpoint)
}
