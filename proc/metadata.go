package proc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// --- 1. SOURCE DESCRIPTORS ---

type SourceKind int

const (
	SourceRemoteVideo SourceKind = iota
	SourceLocalFile
	SourceGeneratedClip
)

// SourceDescriptor identifies where audio bytes originate. Immutable once
// created; exactly one field matching Kind is set.
type SourceDescriptor struct {
	Kind    SourceKind
	VideoID string // SourceRemoteVideo
	Path    string // SourceLocalFile
	Key     string // SourceGeneratedClip
}

func RemoteVideo(videoID string) SourceDescriptor {
	return SourceDescriptor{Kind: SourceRemoteVideo, VideoID: videoID}
}

func LocalFile(path string) SourceDescriptor {
	return SourceDescriptor{Kind: SourceLocalFile, Path: path}
}

func GeneratedClip(key string) SourceDescriptor {
	return SourceDescriptor{Kind: SourceGeneratedClip, Key: key}
}

func (d SourceDescriptor) String() string {
	switch d.Kind {
	case SourceRemoteVideo:
		return "video:" + d.VideoID
	case SourceLocalFile:
		return "file:" + d.Path
	case SourceGeneratedClip:
		return "clip:" + d.Key
	}
	return "unknown"
}

// --- 2. TRACK METADATA & ATTRIBUTION ---

// TrackMetadata is the resolved display state of a track. Immutable once
// produced by the resolver or the speech generator.
type TrackMetadata struct {
	Title     string
	Duration  time.Duration
	Source    SourceDescriptor
	Thumbnail string
}

// Attribution records who enqueued a track. Set once at enqueue time.
type Attribution struct {
	UserID      snowflake.ID
	DisplayName string
	AvatarURL   string
}

// --- 3. METADATA SLOT ---

var (
	ErrMissingQuery       = errors.New("no pending query stored")
	ErrMissingAttribution = errors.New("no attribution stored")
)

// ResolveFunc converts a deferred search query into concrete metadata.
type ResolveFunc func(ctx context.Context, query string) (TrackMetadata, error)

// MetadataSlot is the per-track shared metadata record. Every field is
// guarded by the single mutex; callers never see a slot that is pending
// and resolved at the same time.
type MetadataSlot struct {
	mu           sync.Mutex
	metadata     *TrackMetadata
	pendingQuery string
	attribution  *Attribution

	resolve ResolveFunc
}

// NewResolvedSlot creates a slot for a track whose metadata was known at
// enqueue time.
func NewResolvedSlot(meta TrackMetadata, attr Attribution) *MetadataSlot {
	return &MetadataSlot{
		metadata:    &meta,
		attribution: &attr,
	}
}

// NewPendingSlot creates a slot holding only a deferred search query.
// resolve is invoked later by Generate and its read-through wrappers.
func NewPendingSlot(query string, attr Attribution, resolve ResolveFunc) *MetadataSlot {
	return &MetadataSlot{
		pendingQuery: query,
		attribution:  &attr,
		resolve:      resolve,
	}
}

// ReadMetadata returns a snapshot of the resolved metadata, or nil while
// the slot is still pending.
func (s *MetadataSlot) ReadMetadata() *TrackMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metadata == nil {
		return nil
	}
	meta := *s.metadata
	return &meta
}

// WriteMetadata overwrites the resolved metadata and leaves the pending
// state. The two are never meaningful at once.
func (s *MetadataSlot) WriteMetadata(meta TrackMetadata) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metadata = &meta
	s.pendingQuery = ""
}

func (s *MetadataSlot) WriteAttribution(attr Attribution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attribution = &attr
}

func (s *MetadataSlot) ReadAttribution() *Attribution {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attribution == nil {
		return nil
	}
	attr := *s.attribution
	return &attr
}

// WriteQuery marks the slot pending with the given deferred query.
func (s *MetadataSlot) WriteQuery(q string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pendingQuery = q
	s.metadata = nil
}

// ReadQuery returns the stored deferred query, empty when resolved.
func (s *MetadataSlot) ReadQuery() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingQuery
}

// IsResolved reports whether no deferred query remains.
func (s *MetadataSlot) IsResolved() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingQuery == ""
}

// Generate performs the resolution without mutating the slot. The remote
// call runs with the lock released; the caller decides whether to write
// the result back.
func (s *MetadataSlot) Generate(ctx context.Context) (TrackMetadata, error) {
	s.mu.Lock()
	query := s.pendingQuery
	attr := s.attribution
	resolve := s.resolve
	s.mu.Unlock()

	if query == "" {
		return TrackMetadata{}, ErrMissingQuery
	}
	if attr == nil {
		return TrackMetadata{}, ErrMissingAttribution
	}
	if resolve == nil {
		return TrackMetadata{}, fmt.Errorf("no resolver bound to slot")
	}

	meta, err := resolve(ctx, query)
	if err != nil {
		return TrackMetadata{}, fmt.Errorf("resolve %q: %w", query, err)
	}
	return meta, nil
}

// ReadOrGenerate returns the stored metadata if present, otherwise
// resolves the pending query and writes the result through so subsequent
// readers do not regenerate.
func (s *MetadataSlot) ReadOrGenerate(ctx context.Context) (TrackMetadata, error) {
	if meta := s.ReadMetadata(); meta != nil {
		return *meta, nil
	}

	meta, err := s.Generate(ctx)
	if err != nil {
		return TrackMetadata{}, err
	}
	s.WriteMetadata(meta)
	return meta, nil
}

// EnsureResolved is the idempotent wake-up used by display code and the
// restart path. Redundant concurrent calls may each perform the remote
// resolution (last write wins) but the slot always ends up resolved with
// the pending marker cleared.
func (s *MetadataSlot) EnsureResolved(ctx context.Context) error {
	if s.IsResolved() {
		return nil
	}

	meta, err := s.Generate(ctx)
	if err != nil {
		// A racing caller may have resolved the slot while our attempt
		// was in flight.
		if errors.Is(err, ErrMissingQuery) && s.IsResolved() {
			return nil
		}
		return err
	}

	s.WriteMetadata(meta)
	return nil
}
