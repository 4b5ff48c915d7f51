package models

import "io"

// NoneRef is rendered for an image repository or tag the runtime cannot resolve.
const NoneRef = "<none>"

// Image is the list view of a runtime image.
type Image struct {
	ID         string `json:"id"`
	Repository string `json:"repository"`
	Tag        string `json:"tag"`
	Size       int64  `json:"size"`
	Created    int64  `json:"created"`
}

// ImageDetail is the full inspection of an image.
type ImageDetail struct {
	ID            string            `json:"id"`
	RepoTags      []string          `json:"repo_tags"`
	RepoDigests   []string          `json:"repo_digests"`
	Parent        string            `json:"parent"`
	Comment       string            `json:"comment"`
	Created       string            `json:"created"`
	DockerVersion string            `json:"docker_version"`
	Author        string            `json:"author"`
	Architecture  string            `json:"architecture"`
	Os            string            `json:"os"`
	Size          int64             `json:"size"`
	Labels        map[string]string `json:"labels"`
	ExposedPorts  []string          `json:"exposed_ports"`
	Env           []string          `json:"env"`
	Cmd           []string          `json:"cmd"`
	Entrypoint    []string          `json:"entrypoint"`
	Volumes       []string          `json:"volumes"`
	WorkingDir    string            `json:"working_dir"`
	User          string            `json:"user"`
	Layers        []string          `json:"layers"`
}

// ImageSummary is the reduced view projected from an ImageDetail.
type ImageSummary struct {
	ID           string            `json:"id"`
	Tags         []string          `json:"tags"`
	Size         int64             `json:"size"`
	Created      string            `json:"created"`
	Architecture string            `json:"architecture"`
	Os           string            `json:"os"`
	Author       string            `json:"author,omitempty"`
	Labels       map[string]string `json:"labels"`
	LayerCount   int               `json:"layer_count"`
}

// RemoveResult lists what an image removal deleted and untagged.
type RemoveResult struct {
	Deleted  []string `json:"deleted"`
	Untagged []string `json:"untagged"`
}

// SearchResult is one registry search hit.
type SearchResult struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Stars       int    `json:"stars"`
	Official    bool   `json:"official"`
	Automated   bool   `json:"automated"`
}

// PruneResult reports what an image prune removed.
type PruneResult struct {
	ImagesDeleted  []string `json:"images_deleted"`
	SpaceReclaimed uint64   `json:"space_reclaimed"`
}

// RegistryAuth holds credentials passed to the runtime for a pull.
type RegistryAuth struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	ServerAddress string `json:"serveraddress,omitempty"`
	IdentityToken string `json:"identitytoken,omitempty"`
}

// PullRequest describes an image pull.
type PullRequest struct {
	Image string        `json:"image"`
	Tag   string        `json:"tag"`
	Auth  *RegistryAuth `json:"auth,omitempty"`
}

// BuildRequest describes an image build. Exactly one of ContextPath and GitURL is used;
// GitURL wins when both are set.
type BuildRequest struct {
	ContextPath string             `json:"context"`
	GitURL      string             `json:"git_url"`
	GitRef      string             `json:"git_ref"`
	Dockerfile  string             `json:"dockerfile"`
	Tags        []string           `json:"tags"`
	BuildArgs   map[string]*string `json:"build_args"`
	Labels      map[string]string  `json:"labels"`
	Target      string             `json:"target"`
	NoCache     bool               `json:"no_cache"`
	Pull        bool               `json:"pull"`
	Remove      *bool              `json:"rm"`
	ForceRemove bool               `json:"force_rm"`
}

// ImportRequest describes an image import. Path is read when Source is nil.
type ImportRequest struct {
	Path   string
	Source io.Reader
	Repo   string
	Tag    string
}

// ProgressEvent is one decoded progress message of a pull, build or import.
type ProgressEvent struct {
	ID       string `json:"id,omitempty"`
	Status   string `json:"status,omitempty"`
	Progress string `json:"progress,omitempty"`
	Current  int64  `json:"current,omitempty"`
	Total    int64  `json:"total,omitempty"`
	Stream   string `json:"stream,omitempty"`
	Error    string `json:"error,omitempty"`
}
