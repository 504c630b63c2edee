package webui

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/sarchlab/doccode/catalog"
	"github.com/sarchlab/doccode/codes"
)

type indexPage struct {
	Catalog       catalog.Catalog
	Selected      codes.Key
	GeneratedCode string
	Error         string
	Recent        []codes.Record
}

type recordRsp struct {
	Division string `json:"division_code"`
	Area     string `json:"area_code"`
	Doc      string `json:"doc_code"`
	ID       string `json:"id"`
	Code     string `json:"code"`
}

type counterRsp struct {
	Division string `json:"division_code"`
	Area     string `json:"area_code"`
	Doc      string `json:"doc_code"`
	Last     int    `json:"last"`
}

type allocateReq struct {
	Division string `json:"division_code"`
	Area     string `json:"area_code"`
	Doc      string `json:"doc_code"`
}

type allocateRsp struct {
	Code string `json:"code"`
	ID   string `json:"id"`
}

type errorRsp struct {
	Error string `json:"error"`
}

func (s *Server) showForm(w http.ResponseWriter, _ *http.Request) {
	s.renderIndex(w, http.StatusOK, indexPage{})
}

func (s *Server) generateCode(w http.ResponseWriter, r *http.Request) {
	err := r.ParseForm()
	if err != nil {
		s.renderIndex(w, http.StatusBadRequest, indexPage{Error: err.Error()})
		return
	}

	key := codes.Key{
		Division: r.PostForm.Get("division_code"),
		Area:     r.PostForm.Get("area_code"),
		Doc:      r.PostForm.Get("doc_code"),
	}

	if missing := missingFields(key); len(missing) > 0 {
		s.renderIndex(w, http.StatusBadRequest, indexPage{
			Selected: key,
			Error:    "Missing " + strings.Join(missing, ", "),
		})

		return
	}

	s.warnIfOffCatalog(r, key)

	record, err := s.allocator.Allocate(key.Division, key.Area, key.Doc)
	if err != nil {
		s.logger.Error("Failed to generate code",
			zap.String("request_id", requestID(r)),
			zap.Error(err))

		s.renderIndex(w, statusOf(err), indexPage{
			Selected: key,
			Error:    "The code could not be generated: " + err.Error(),
		})

		return
	}

	s.renderIndex(w, http.StatusOK, indexPage{
		Selected:      key,
		GeneratedCode: record.Code,
	})
}

func (s *Server) renderIndex(w http.ResponseWriter, status int, page indexPage) {
	page.Catalog = s.catalog
	page.Recent = recent(s.allocator.Records(), recentCount)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)

	err := s.index.Execute(w, page)
	if err != nil {
		s.logger.Error("Failed to render page", zap.Error(err))
	}
}

func (s *Server) listCodes(w http.ResponseWriter, _ *http.Request) {
	records := s.allocator.Records()

	rsp := make([]recordRsp, 0, len(records))
	for _, rec := range records {
		rsp = append(rsp, recordRsp{
			Division: rec.Division,
			Area:     rec.Area,
			Doc:      rec.Doc,
			ID:       rec.ID,
			Code:     rec.Code,
		})
	}

	writeJSON(w, http.StatusOK, rsp)
}

func (s *Server) listCounters(w http.ResponseWriter, _ *http.Request) {
	counters := s.allocator.SortedCounters()

	rsp := make([]counterRsp, 0, len(counters))
	for _, c := range counters {
		rsp = append(rsp, counterRsp{
			Division: c.Division,
			Area:     c.Area,
			Doc:      c.Doc,
			Last:     c.Last,
		})
	}

	writeJSON(w, http.StatusOK, rsp)
}

func (s *Server) allocate(w http.ResponseWriter, r *http.Request) {
	req := allocateReq{}

	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorRsp{Error: err.Error()})
		return
	}

	key := codes.Key{Division: req.Division, Area: req.Area, Doc: req.Doc}
	if missing := missingFields(key); len(missing) > 0 {
		writeJSON(w, http.StatusBadRequest, errorRsp{
			Error: "missing " + strings.Join(missing, ", "),
		})

		return
	}

	s.warnIfOffCatalog(r, key)

	record, err := s.allocator.Allocate(key.Division, key.Area, key.Doc)
	if err != nil {
		s.logger.Error("Failed to allocate code",
			zap.String("request_id", requestID(r)),
			zap.Error(err))
		writeJSON(w, statusOf(err), errorRsp{Error: err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, allocateRsp{Code: record.Code, ID: record.ID})
}

func (s *Server) showCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.catalog)
}

func missingFields(key codes.Key) []string {
	var missing []string

	if strings.TrimSpace(key.Division) == "" {
		missing = append(missing, "division_code")
	}

	if strings.TrimSpace(key.Area) == "" {
		missing = append(missing, "area_code")
	}

	if strings.TrimSpace(key.Doc) == "" {
		missing = append(missing, "doc_code")
	}

	return missing
}

// warnIfOffCatalog logs keys that use values the form does not offer. Such
// keys are still allocated.
func (s *Server) warnIfOffCatalog(r *http.Request, key codes.Key) {
	if s.catalog.Contains(key.Division, key.Area, key.Doc) {
		return
	}

	s.logger.Warn("Key is not in the catalog",
		zap.String("request_id", requestID(r)),
		zap.Stringer("key", key))
}

func statusOf(err error) int {
	if errors.Is(err, codes.ErrNotInitialized) {
		return http.StatusServiceUnavailable
	}

	return http.StatusInternalServerError
}

func recent(records []codes.Record, n int) []codes.Record {
	out := make([]codes.Record, 0, n)

	for i := len(records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, records[i])
	}

	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	bytes, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_, err = w.Write(bytes)
	if err != nil {
		log.Printf("write response: %v", err)
	}
}
