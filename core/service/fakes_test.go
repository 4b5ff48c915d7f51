package service

import (
	"context"
	"io"
	"strings"
	"sync"

	"nfcunha/deckhand/core/models"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func rawStats(cpuTotal, preCPUTotal, system, preSystem uint64, cpus uint32, memUsage, memLimit uint64) *models.RawStats {
	return &models.RawStats{
		CPUStats: &container.CPUStats{
			CPUUsage:    container.CPUUsage{TotalUsage: cpuTotal},
			SystemUsage: system,
			OnlineCPUs:  cpus,
		},
		PreCPUStats: &container.CPUStats{
			CPUUsage:    container.CPUUsage{TotalUsage: preCPUTotal},
			SystemUsage: preSystem,
		},
		MemoryStats: &container.MemoryStats{Usage: memUsage, Limit: memLimit},
	}
}

type fakeHandle struct {
	id, name string
	calls    []string
	err      error
}

func (h *fakeHandle) ID() string   { return h.id }
func (h *fakeHandle) Name() string { return h.name }

func (h *fakeHandle) Start(context.Context) error {
	h.calls = append(h.calls, "start")
	return h.err
}

func (h *fakeHandle) Stop(context.Context) error {
	h.calls = append(h.calls, "stop")
	return h.err
}

func (h *fakeHandle) Restart(context.Context) error {
	h.calls = append(h.calls, "restart")
	return h.err
}

func (h *fakeHandle) Remove(_ context.Context, force bool) error {
	if force {
		h.calls = append(h.calls, "remove-force")
	} else {
		h.calls = append(h.calls, "remove")
	}
	return h.err
}

type removeCall struct {
	ref            string
	force, noprune bool
}

// fakeRuntime implements ContainerRuntime and ImageRuntime in memory.
type fakeRuntime struct {
	mu sync.Mutex

	containers  []models.Container
	listErr     error
	details     map[string]*models.ContainerDetail
	stats       map[string]*models.RawStats
	statsErr    map[string]error
	logs        map[string]string
	handles     map[string]*fakeHandle
	logOpts     []models.LogOptions
	inspectHits int

	images      []image.Summary
	imageDetail map[string]*models.ImageDetail
	pullRefs    []string
	pullBody    string
	buildOpts   []types.ImageBuildOptions
	buildBody   string
	removes     []removeCall
	removeResp  []image.DeleteResponse
	tags        []string
	searchLimit int
	searchArgs  filters.Args
	searchResp  []registry.SearchResult
	saveIDs     []string
	loadBody    string
	loaded      []byte
	prune       *models.PruneResult
}

func newFakeRuntime() *fakeRuntime {
	return &fakeRuntime{
		details:     make(map[string]*models.ContainerDetail),
		stats:       make(map[string]*models.RawStats),
		statsErr:    make(map[string]error),
		logs:        make(map[string]string),
		handles:     make(map[string]*fakeHandle),
		imageDetail: make(map[string]*models.ImageDetail),
	}
}

func notFound(id string) error {
	return models.NotFound("fake", "no such object: %s", id)
}

func (f *fakeRuntime) ListContainers(_ context.Context, all bool) ([]models.Container, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if all {
		return f.containers, nil
	}
	var running []models.Container
	for _, c := range f.containers {
		if c.State == "running" {
			running = append(running, c)
		}
	}
	return running, nil
}

func (f *fakeRuntime) InspectContainer(_ context.Context, id string) (*models.ContainerDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inspectHits++
	if d, ok := f.details[id]; ok {
		return d, nil
	}
	return nil, notFound(id)
}

func (f *fakeRuntime) GetRawStats(_ context.Context, id string) (*models.RawStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.statsErr[id]; err != nil {
		return nil, err
	}
	if s, ok := f.stats[id]; ok {
		return s, nil
	}
	return nil, notFound(id)
}

func (f *fakeRuntime) OpenLogStream(_ context.Context, id string, opts models.LogOptions) (io.ReadCloser, error) {
	f.logOpts = append(f.logOpts, opts)
	logs, ok := f.logs[id]
	if !ok {
		return nil, notFound(id)
	}
	return io.NopCloser(strings.NewReader(logs)), nil
}

func (f *fakeRuntime) GetContainer(_ context.Context, id string) (models.ContainerHandle, error) {
	if h, ok := f.handles[id]; ok {
		return h, nil
	}
	return nil, notFound(id)
}

func (f *fakeRuntime) ListImages(context.Context, bool) ([]image.Summary, error) {
	return f.images, nil
}

func (f *fakeRuntime) PullImage(_ context.Context, ref string, _ *models.RegistryAuth) (io.ReadCloser, error) {
	f.pullRefs = append(f.pullRefs, ref)
	return io.NopCloser(strings.NewReader(f.pullBody)), nil
}

func (f *fakeRuntime) BuildImage(_ context.Context, buildContext io.Reader, opts types.ImageBuildOptions) (io.ReadCloser, error) {
	f.buildOpts = append(f.buildOpts, opts)
	return io.NopCloser(strings.NewReader(f.buildBody)), nil
}

func (f *fakeRuntime) RemoveImage(_ context.Context, ref string, force, noprune bool) ([]image.DeleteResponse, error) {
	f.removes = append(f.removes, removeCall{ref: ref, force: force, noprune: noprune})
	return f.removeResp, nil
}

func (f *fakeRuntime) InspectImage(_ context.Context, id string) (*models.ImageDetail, error) {
	if d, ok := f.imageDetail[id]; ok {
		return d, nil
	}
	return nil, notFound(id)
}

func (f *fakeRuntime) TagImage(_ context.Context, source, target string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tags = append(f.tags, source+"->"+target)
	return nil
}

func (f *fakeRuntime) SearchImages(_ context.Context, _ string, limit int, args filters.Args) ([]registry.SearchResult, error) {
	f.searchLimit = limit
	f.searchArgs = args
	return f.searchResp, nil
}

func (f *fakeRuntime) SaveImages(_ context.Context, ids []string) (io.ReadCloser, error) {
	f.saveIDs = ids
	return io.NopCloser(strings.NewReader("tar")), nil
}

func (f *fakeRuntime) LoadImage(_ context.Context, input io.Reader) (io.ReadCloser, error) {
	data, err := io.ReadAll(input)
	if err != nil {
		return nil, err
	}
	f.loaded = data
	return io.NopCloser(strings.NewReader(f.loadBody)), nil
}

func (f *fakeRuntime) PruneImages(context.Context, filters.Args) (*models.PruneResult, error) {
	return f.prune, nil
}

type memoryActions struct {
	mu      sync.Mutex
	entries []*models.ActionLog
}

func (m *memoryActions) Create(entry *models.ActionLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryActions) last() *models.ActionLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return nil
	}
	return m.entries[len(m.entries)-1]
}
