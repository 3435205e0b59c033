package migrations

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/stepflow/pkg/models"
)

// CurrentSchemaVersion is the schema version written by the last migration.
const CurrentSchemaVersion = "5"

// Migration upgrades documents tagged TargetSchemaVersion ("" for untagged)
// to the next version. Migrate owns its argument and must set a newer
// schemaVersion.
type Migration struct {
	Name                string
	TargetSchemaVersion string
	Migrate             func(Document) Document
}

type Pipeline struct {
	logger     *slog.Logger
	now        func() time.Time
	migrations []Migration
}

type Option func(*Pipeline)

// WithClock sets the clock used by migrations that stamp timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

func New(logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(p)
	}

	p.migrations = p.chain()

	return p
}

// Migrations returns the ordered migration list.
func (p *Pipeline) Migrations() []Migration {
	return append([]Migration(nil), p.migrations...)
}

// Apply folds the migration list over a copy of doc. A migration runs only
// when the document carries its target version, so each applicable
// migration runs once, in order.
func (p *Pipeline) Apply(doc Document) Document {
	out := doc.clone()

	for _, m := range p.migrations {
		if out.SchemaVersion() != m.TargetSchemaVersion {
			continue
		}

		from := out.SchemaVersion()
		out = m.Migrate(out)

		p.logger.Debug("migrated flow version",
			slog.String("migration", m.Name),
			slog.String("from", from),
			slog.String("to", out.SchemaVersion()),
			slog.Any("flow_version_id", out["id"]))
	}

	return out
}

// Load decodes, migrates and types a persisted flow version.
func (p *Pipeline) Load(data []byte) (*models.FlowVersion, error) {
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, fmt.Errorf("decoding flow version: %w", err)
	}

	return p.Type(p.Apply(doc))
}

// Type converts a migrated document into a flow version.
func (p *Pipeline) Type(doc Document) (*models.FlowVersion, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}

	var fv models.FlowVersion
	if err := json.Unmarshal(data, &fv); err != nil {
		return nil, fmt.Errorf("decoding migrated flow version: %w", err)
	}

	return &fv, nil
}

// MigrateTrigger upgrades a trigger tree exported at schemaVersion.
func (p *Pipeline) MigrateTrigger(raw json.RawMessage, schemaVersion string) (models.Trigger, error) {
	var trigger map[string]any
	if err := json.Unmarshal(raw, &trigger); err != nil {
		return nil, err
	}

	doc := Document{"trigger": trigger}
	if schemaVersion != "" {
		doc["schemaVersion"] = schemaVersion
	}

	migrated, err := json.Marshal(p.Apply(doc).trigger())
	if err != nil {
		return nil, err
	}

	return models.UnmarshalTrigger(migrated)
}

// unrecognized logs a shape a migration leaves untouched.
func (p *Pipeline) unrecognized(migration string, s Step, reason string) {
	p.logger.Debug("step left unmigrated",
		slog.String("migration", migration),
		slog.String("step", stepName(s)),
		slog.String("reason", reason))
}
