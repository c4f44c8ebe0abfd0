package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/himanishpuri/maidata/pkg/logger"
	"github.com/himanishpuri/maidata/pkg/maidata"
	"github.com/himanishpuri/maidata/pkg/maidata/container"
	"github.com/himanishpuri/maidata/pkg/maidata/export"
	"github.com/himanishpuri/maidata/pkg/maidata/insn"
	"github.com/himanishpuri/maidata/pkg/maidata/materialize"
)

// Server encapsulates the HTTP server and its dependencies
type Server struct {
	service maidata.Service
	config  *ServerConfig
	log     maidata.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	DBPath         string
	DefaultOffset  float64
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(service maidata.Service, config *ServerConfig) *Server {
	return &Server{
		service: service,
		config:  config,
		log:     logger.GetLogger(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// respondServiceError maps errors from the parser, the engine and the
// library to status codes. Located errors carry their line and column.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Message: err.Error()}

	var perr *insn.ParseError
	var merr *materialize.Error
	var cerr *container.Error
	switch {
	case errors.As(err, &perr):
		resp.Code, resp.Line, resp.Col = http.StatusBadRequest, perr.Pos.Line, perr.Pos.Col
	case errors.As(err, &cerr):
		resp.Code, resp.Line, resp.Col = http.StatusBadRequest, cerr.Pos.Line, cerr.Pos.Col
	case errors.As(err, &merr):
		resp.Code, resp.Line, resp.Col = http.StatusUnprocessableEntity, merr.Span.Line, merr.Span.Col
	case errors.Is(err, maidata.ErrNoInstructions):
		resp.Code = http.StatusUnprocessableEntity
	case errors.Is(err, maidata.ErrChartNotFound), errors.Is(err, maidata.ErrDifficultyNotFound):
		resp.Code = http.StatusNotFound
	default:
		s.log.Errorf("Internal error: %v", err)
		resp.Code = http.StatusInternalServerError
		resp.Message = "Internal server error"
	}

	resp.Error = http.StatusText(resp.Code)
	s.respondJSON(w, resp.Code, resp)
}

// decodeRequest reads a JSON body into req and validates it
func (s *Server) decodeRequest(w http.ResponseWriter, r *http.Request, req interface{ Validate() error }) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON body: %v", err))
		return false
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "maidata API",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":      "GET /health",
			"parse":       "POST /api/parse",
			"materialize": "POST /api/materialize",
			"charts":      "GET /api/charts",
			"importChart": "POST /api/charts",
			"getChart":    "GET /api/charts/{id}",
			"deleteChart": "DELETE /api/charts/{id}",
			"inote":       "GET /api/charts/{id}/difficulties/{difficulty}/inote",
			"notes":       "GET /api/charts/{id}/difficulties/{difficulty}/notes",
			"midi":        "GET /api/charts/{id}/difficulties/{difficulty}/midi",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// handleParse handles POST /api/parse
func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	var req ParseRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	insns, err := s.service.ParseInstructions(req.Inote)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	dtos := make([]InstructionDTO, len(insns))
	for i, in := range insns {
		dtos[i] = InstructionDTO{
			Kind: instructionKind(in.Value),
			Text: fmt.Sprint(in.Value),
			Span: in.Span,
		}
	}
	s.respondJSON(w, http.StatusOK, ParseResponse{Instructions: dtos, Count: len(dtos)})
}

func instructionKind(v insn.RawInsn) string {
	switch v.(type) {
	case insn.SetTempo:
		return "tempo"
	case insn.SetSubdivision:
		return "subdivision"
	case insn.Rest:
		return "rest"
	case insn.SingleNote:
		return "note"
	case insn.NoteBundle:
		return "bundle"
	case insn.EndMark:
		return "end"
	}
	return "unknown"
}

// handleMaterialize handles POST /api/materialize
func (s *Server) handleMaterialize(w http.ResponseWriter, r *http.Request) {
	var req MaterializeRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	offset := s.config.DefaultOffset
	if req.Offset != nil {
		offset = *req.Offset
	}

	notes, err := s.service.MaterializeText(req.Inote, offset)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondNotes(w, notes)
}

func (s *Server) respondNotes(w http.ResponseWriter, notes []materialize.Note) {
	records, err := export.Records(notes)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, NotesResponse{Notes: records, Count: len(records)})
}

// handleListCharts handles GET /api/charts
func (s *Server) handleListCharts(w http.ResponseWriter, r *http.Request) {
	charts, err := s.service.ListCharts()
	if err != nil {
		s.log.Errorf("Failed to list charts: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve charts")
		return
	}

	dtos := make([]ChartDTO, len(charts))
	for i, c := range charts {
		dtos[i] = newChartDTO(c)
	}
	s.respondJSON(w, http.StatusOK, ListChartsResponse{Charts: dtos, Count: len(dtos)})
}

// handleImportChart handles POST /api/charts
func (s *Server) handleImportChart(w http.ResponseWriter, r *http.Request) {
	var req ImportChartRequest
	if !s.decodeRequest(w, r, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Minute)
	defer cancel()

	id, err := s.service.ImportChart(ctx, req.Maidata)
	if err != nil {
		s.log.Warnf("Import failed: %v", err)
		s.respondServiceError(w, err)
		return
	}

	chart, err := s.service.GetChart(id)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, ImportChartResponse{
		Message: "Chart imported successfully",
		Chart:   newChartDTO(*chart),
	})
}

// handleGetChart handles GET /api/charts/{id}
func (s *Server) handleGetChart(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	chart, err := s.service.GetChart(id)
	if err != nil {
		s.log.Warnf("Chart not found: %s", id)
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, newChartDTO(*chart))
}

// handleDeleteChart handles DELETE /api/charts/{id}
func (s *Server) handleDeleteChart(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.service.DeleteChart(id); err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, DeleteChartResponse{
		Message: "Chart deleted successfully",
		ID:      id,
	})
}

// difficultyVar parses the {difficulty} route variable
func (s *Server) difficultyVar(w http.ResponseWriter, r *http.Request) (container.Difficulty, bool) {
	d, err := container.ParseDifficulty(mux.Vars(r)["difficulty"])
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return d, true
}

// handleGetNotes handles GET /api/charts/{id}/difficulties/{difficulty}/notes
func (s *Server) handleGetNotes(w http.ResponseWriter, r *http.Request) {
	d, ok := s.difficultyVar(w, r)
	if !ok {
		return
	}
	notes, err := s.service.GetNotes(mux.Vars(r)["id"], d)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondNotes(w, notes)
}

// handleGetInote handles GET /api/charts/{id}/difficulties/{difficulty}/inote
func (s *Server) handleGetInote(w http.ResponseWriter, r *http.Request) {
	d, ok := s.difficultyVar(w, r)
	if !ok {
		return
	}
	inote, err := s.service.GetInote(mux.Vars(r)["id"], d)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(inote))
}

// handleGetMIDI handles GET /api/charts/{id}/difficulties/{difficulty}/midi
func (s *Server) handleGetMIDI(w http.ResponseWriter, r *http.Request) {
	d, ok := s.difficultyVar(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	chart, err := s.service.GetChart(id)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	notes, err := s.service.GetNotes(id, d)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteMIDI(&buf, notes, fmt.Sprintf("%s [%s]", chart.Title, d)); err != nil {
		s.log.Errorf("Failed to write MIDI for %s/%s: %v", id, d, err)
		s.respondError(w, http.StatusInternalServerError, "Failed to render MIDI")
		return
	}

	w.Header().Set("Content-Type", "audio/midi")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("%s-%d.mid", id, d)))
	w.Write(buf.Bytes())
}
