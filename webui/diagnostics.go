package webui

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"runtime/pprof"
	"time"

	"github.com/google/pprof/profile"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"
	"go.uber.org/zap"
)

const (
	profileDuration = time.Second
	stateDepth      = 3
)

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (s *Server) listResources(w http.ResponseWriter, r *http.Request) {
	rsp, err := processResources(int32(os.Getpid()))
	if err != nil {
		s.diagnosticsFailed(w, r, "resource", err)
		return
	}

	writeJSON(w, http.StatusOK, rsp)
}

func processResources(pid int32) (resourceRsp, error) {
	proc, err := process.NewProcess(pid)
	if err != nil {
		return resourceRsp{}, fmt.Errorf("find process %d: %w", pid, err)
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		return resourceRsp{}, fmt.Errorf("cpu usage: %w", err)
	}

	memory, err := proc.MemoryInfo()
	if err != nil {
		return resourceRsp{}, fmt.Errorf("memory usage: %w", err)
	}

	return resourceRsp{CPUPercent: cpuPercent, MemorySize: memory.RSS}, nil
}

// collectProfile samples the CPU for a second and returns the parsed profile.
// Only one profile can run at a time.
func (s *Server) collectProfile(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer

	err := pprof.StartCPUProfile(&buf)
	if err != nil {
		writeJSON(w, http.StatusConflict, errorRsp{Error: err.Error()})
		return
	}

	timer := time.NewTimer(profileDuration)
	select {
	case <-timer.C:
	case <-r.Context().Done():
		timer.Stop()
	}

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	if err != nil {
		s.diagnosticsFailed(w, r, "profile", err)
		return
	}

	writeJSON(w, http.StatusOK, prof)
}

// stateSnapshot is what /api/state serializes.
type stateSnapshot struct {
	SessionID string
	Location  string
	State     string
	Records   []recordRsp
	Counters  []counterRsp
}

func (s *Server) snapshot() *stateSnapshot {
	snapshot := &stateSnapshot{
		SessionID: s.sessionID,
		Location:  s.allocator.Location(),
		State:     s.allocator.State().String(),
	}

	for _, rec := range s.allocator.Records() {
		snapshot.Records = append(snapshot.Records, recordRsp{
			Division: rec.Division,
			Area:     rec.Area,
			Doc:      rec.Doc,
			ID:       rec.ID,
			Code:     rec.Code,
		})
	}

	for _, c := range s.allocator.SortedCounters() {
		snapshot.Counters = append(snapshot.Counters, counterRsp{
			Division: c.Division,
			Area:     c.Area,
			Doc:      c.Doc,
			Last:     c.Last,
		})
	}

	return snapshot
}

func (s *Server) dumpState(w http.ResponseWriter, r *http.Request) {
	serializer := goseth.NewSerializer()
	serializer.SetRoot(s.snapshot())
	serializer.SetMaxDepth(stateDepth)

	var buf bytes.Buffer
	if err := serializer.Serialize(&buf); err != nil {
		s.diagnosticsFailed(w, r, "state", err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) diagnosticsFailed(
	w http.ResponseWriter,
	r *http.Request,
	what string,
	err error,
) {
	s.logger.Error("Failed to collect diagnostics",
		zap.String("request_id", requestID(r)),
		zap.String("kind", what),
		zap.Error(err))

	writeJSON(w, http.StatusInternalServerError, errorRsp{Error: err.Error()})
}
