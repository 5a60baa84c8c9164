// Package monitor serves a read-only JSON view of the allocator over HTTP.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/bietkhonhungvandi212/kswap/internal/storage/kmem"
	"github.com/bietkhonhungvandi212/kswap/internal/storage/vm"
	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
	"github.com/gorilla/mux"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
)

const moduleName = "monitor"

// Source is what the monitor reads from the allocator.
type Source interface {
	Stats() kmem.Stats
	LRUOrder() []util.FrameIdx
	SwapSlots() *kmem.SwapMap
	FrameOwner(pa util.PhysAddr) (kmem.AddressSpace, util.VirtAddr)
}

type Server struct {
	src    Source
	procs  *vm.Table
	router *mux.Router
	srv    *http.Server
	ln     net.Listener
	log    logrus.FieldLogger
}

func NewServer(src Source, procs *vm.Table, log logrus.FieldLogger) *Server {
	if log == nil {
		log = util.DiscardLogger()
	}
	s := &Server{
		src:    src,
		procs:  procs,
		router: mux.NewRouter(),
		log:    log.WithField("module", moduleName),
	}

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/lru", s.handleLRU).Methods(http.MethodGet)
	api.HandleFunc("/frames/{idx:[0-9]+}", s.handleFrame).Methods(http.MethodGet)
	api.HandleFunc("/swap", s.handleSwap).Methods(http.MethodGet)
	api.HandleFunc("/processes", s.handleProcesses).Methods(http.MethodGet)
	api.HandleFunc("/host", s.handleHost).Methods(http.MethodGet)
	s.router.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "module": moduleName})
	})
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Start listens on addr and serves in the background. It returns the bound
// address, useful when addr asks for port 0.
func (s *Server) Start(addr string) (string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("[monitor] [Start] %w", err)
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("monitor stopped")
		}
	}()
	s.log.WithField("addr", ln.Addr().String()).Info("monitor listening")
	return ln.Addr().String(), nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.src.Stats())
}

type lruView struct {
	Count  int             `json:"count"`
	Frames []util.FrameIdx `json:"frames"`
}

func (s *Server) handleLRU(w http.ResponseWriter, _ *http.Request) {
	order := s.src.LRUOrder()
	writeJSON(w, http.StatusOK, lruView{Count: len(order), Frames: order})
}

type frameView struct {
	Frame   util.FrameIdx `json:"frame"`
	Addr    string        `json:"addr"`
	Tracked bool          `json:"tracked"`
	VA      string        `json:"va,omitempty"`
	Entry   string        `json:"entry,omitempty"`
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(mux.Vars(r)["idx"])
	if err != nil || idx >= s.src.Stats().TotalFrames {
		writeError(w, http.StatusNotFound, "no such frame")
		return
	}

	fi := util.FrameIdx(idx)
	view := frameView{Frame: fi, Addr: fmt.Sprintf("0x%08x", uint32(fi.Address()))}
	if space, va := s.src.FrameOwner(fi.Address()); space != nil {
		view.Tracked = true
		view.VA = fmt.Sprintf("0x%08x", uint32(va))
		if e := space.Walk(va); e != nil {
			view.Entry = e.Load().String()
		}
	}
	writeJSON(w, http.StatusOK, view)
}

type swapView struct {
	Slots int            `json:"slots"`
	Used  int            `json:"used"`
	Live  []util.SlotIdx `json:"live"`
}

func (s *Server) handleSwap(w http.ResponseWriter, _ *http.Request) {
	m := s.src.SwapSlots()
	live := m.Allocated()
	writeJSON(w, http.StatusOK, swapView{Slots: m.Len(), Used: len(live), Live: live})
}

type processView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Resident int    `json:"resident"`
	Mapped   int    `json:"mapped"`
}

func (s *Server) handleProcesses(w http.ResponseWriter, _ *http.Request) {
	out := []processView{}
	if s.procs != nil {
		for _, p := range s.procs.Processes() {
			out = append(out, processView{
				ID:       p.ID.String(),
				Name:     p.Name,
				Resident: p.Space.Resident(),
				Mapped:   len(p.Space.Mapped()),
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

type hostView struct {
	Total       uint64  `json:"total"`
	Available   uint64  `json:"available"`
	UsedPercent float64 `json:"used_percent"`
	RSS         uint64  `json:"rss"`
	VMS         uint64  `json:"vms"`
}

// handleHost reports the real machine next to the simulated one.
func (s *Server) handleHost(w http.ResponseWriter, _ *http.Request) {
	vmem, err := mem.VirtualMemory()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	view := hostView{
		Total:       vmem.Total,
		Available:   vmem.Available,
		UsedPercent: vmem.UsedPercent,
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := p.MemoryInfo(); err == nil {
			view.RSS = info.RSS
			view.VMS = info.VMS
		}
	}
	writeJSON(w, http.StatusOK, view)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
