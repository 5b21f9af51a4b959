package core

import "time"

// ArticleStatus tracks an article's position in the review pipeline.
type ArticleStatus string

const (
	ArticleStatusPending  ArticleStatus = "pending"
	ArticleStatusAccepted ArticleStatus = "accepted"
	ArticleStatusRejected ArticleStatus = "rejected"
)

// Article represents a single piece of source content submitted for review.
type Article struct {
	ID            string        `json:"id"`             // Unique identifier for the article
	GroupID       string        `json:"group_id"`       // Podcast group this article was submitted to
	Title         string        `json:"title"`          // Article title
	Body          string        `json:"body"`            // Raw article body text
	SourceURL     string        `json:"source_url"`     // Where the article came from, if known
	Fingerprint   string        `json:"fingerprint"`    // sha256 fingerprint used for dedup
	Status        ArticleStatus `json:"status"`         // pending, accepted, rejected
	Tier          string        `json:"tier"`           // light or heavy, set once reviewed
	Confidence    float64       `json:"confidence"`     // reviewer confidence score, 0.0-1.0
	Summary       string        `json:"summary"`        // reviewer-produced short summary
	Tags          []string      `json:"tags"`           // normalized topic tags
	Escalate      bool          `json:"escalate"`       // upstream hint forcing heavy review regardless of light confidence
	CollectionID  string        `json:"collection_id"`  // collection this article was assigned to, if accepted
	ReviewedAt    time.Time     `json:"reviewed_at"`    // when review completed, zero if not yet reviewed
	SubmittedAt   time.Time     `json:"submitted_at"`   // when the article entered the review queue
}

// CollectionStatus tracks a collection's lifecycle stage.
type CollectionStatus string

const (
	CollectionStatusBuilding CollectionStatus = "building"
	CollectionStatusSnapshot CollectionStatus = "snapshot"
	CollectionStatusExpired  CollectionStatus = "expired"
)

// Collection is an append-only bucket of accepted articles awaiting an episode.
// Exactly one collection per group may be in CollectionStatusBuilding at a time.
type Collection struct {
	ID              string           `json:"id"`                // Unique identifier for the collection
	GroupID         string           `json:"group_id"`          // Podcast group this collection belongs to
	Status          CollectionStatus `json:"status"`            // building, snapshot, expired
	ArticleIDs      []string         `json:"article_ids"`       // accepted articles assigned to this collection
	CreatedAt       time.Time        `json:"created_at"`        // when the collection was opened
	SnapshotAt      time.Time        `json:"snapshot_at"`       // when the collection was sealed, zero if still building
	SuccessorID     string           `json:"successor_id"`      // the building collection opened at snapshot time
	LinkedEpisodeID string           `json:"linked_episode_id"` // the episode this snapshot was created for, empty unless status=snapshot
}

// CadenceBucket is the adaptive publishing frequency assigned to a group.
type CadenceBucket string

const (
	CadenceDaily    CadenceBucket = "daily"
	CadenceThreeDay CadenceBucket = "three_day"
	CadenceWeekly   CadenceBucket = "weekly"
)

// PodcastGroup is a single show: its own cadence, its own chain of collections and episodes.
type PodcastGroup struct {
	ID               string        `json:"id"`                // Unique identifier for the group
	Name             string        `json:"name"`              // Human-readable show name
	Active           bool          `json:"active"`            // whether the group currently generates episodes
	Cadence          CadenceBucket `json:"cadence"`           // current adaptive cadence bucket
	Presenters       []string      `json:"presenters"`        // 1-4 presenter voice/persona ids assigned to this show
	WriterProfile    string        `json:"writer_profile"`    // the writer persona/style profile forwarded to the Writer collaborator
	TargetMinutes    int           `json:"target_minutes"`    // target episode length in minutes
	LastEpisodeAt    time.Time     `json:"last_episode_at"`   // when the last episode was published, zero if never
	LastTickAt       time.Time     `json:"last_tick_at"`      // when the cadence controller last evaluated this group
	ActiveCollection string        `json:"active_collection"` // the building collection's ID, empty if none open yet
	CreatedAt        time.Time     `json:"created_at"`        // when the group was created
}

// EpisodeStatus is a stage in the linear episode generation state machine.
type EpisodeStatus string

const (
	EpisodeStatusDraft     EpisodeStatus = "draft"
	EpisodeStatusScripted  EpisodeStatus = "scripted"
	EpisodeStatusEdited    EpisodeStatus = "edited"
	EpisodeStatusVoiced    EpisodeStatus = "voiced"
	EpisodeStatusPublished EpisodeStatus = "published"
	EpisodeStatusFailed    EpisodeStatus = "failed"
)

// Episode tracks one podcast episode's progress through generation.
type Episode struct {
	ID           string        `json:"id"`            // Unique identifier for the episode
	GroupID      string        `json:"group_id"`      // Podcast group this episode belongs to
	CollectionID string        `json:"collection_id"` // Source collection snapshot this episode was generated from
	Status       EpisodeStatus `json:"status"`        // draft, scripted, edited, voiced, published, failed
	Script       string        `json:"script"`        // raw writer-produced script
	EditedScript string        `json:"edited_script"` // editor-cleaned script, what TTS actually reads
	Title        string        `json:"title"`         // writer-produced episode title
	Description  string        `json:"description"`   // writer-produced or synthesized episode description
	Tags         []string      `json:"tags"`          // writer-produced or synthesized episode tags
	DegradedEditor bool        `json:"degraded_editor"` // true if the edit pass failed and the unedited script was kept
	AudioFileID  string        `json:"audio_file_id"` // associated AudioFile, empty until voiced
	PublishURL   string        `json:"publish_url"`   // publisher-returned canonical URL, empty until published
	FailureStage string        `json:"failure_stage"` // which stage failed, empty unless Status is failed
	FailureError string        `json:"failure_error"` // last collaborator error, empty unless Status is failed
	CreatedAt    time.Time     `json:"created_at"`    // when generation began
	UpdatedAt    time.Time     `json:"updated_at"`    // last stage transition
}

// AudioFile is the synthesized audio artifact produced for an episode.
type AudioFile struct {
	ID         string        `json:"id"`          // Unique identifier for the audio file
	EpisodeID  string        `json:"episode_id"`  // Episode this audio belongs to
	URL         string       `json:"url"`         // TTS-provider-returned storage location
	DurationSec float64      `json:"duration_sec"` // audio duration in seconds
	VoiceID    string        `json:"voice_id"`    // voice used for synthesis
	CreatedAt  time.Time     `json:"created_at"`  // when synthesis completed
}
