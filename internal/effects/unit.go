package effects

import (
	"sync"

	"github.com/google/uuid"

	"github.com/cbegin/sonicdeck-go/internal/filter"
)

// Settings are the immutable parameters of one effect kind. Set methods on
// a Unit replace its Settings value.
type Settings interface {
	Kind() Kind
	with(id ParamID, v float64) (Settings, error)
	newEffector(sampleRate int) Effector
}

// DefaultSettings returns the defaults for k.
func DefaultSettings(k Kind) (Settings, error) {
	switch k {
	case KindFilter:
		return DefaultFilter(), nil
	case KindDelay:
		return DefaultDelay(), nil
	case KindReverb:
		return DefaultReverb(), nil
	case KindChorus:
		return DefaultChorus(), nil
	case KindDistortion:
		return DefaultDistortion(), nil
	case KindEQ:
		return DefaultEQ(), nil
	case KindCompressor:
		return DefaultCompressor(), nil
	}
	return nil, ErrUnknownKind
}

// Unit is one entry of a Chain. Its processor is instantiated when a path
// is built, so changes only reach paths built afterwards.
type Unit struct {
	id uuid.UUID

	mu       sync.Mutex
	enabled  bool
	settings Settings
}

// NewUnit creates an enabled unit of kind k with default settings.
func NewUnit(k Kind) (*Unit, error) {
	s, err := DefaultSettings(k)
	if err != nil {
		return nil, err
	}
	return NewUnitWith(s)
}

// NewUnitWith creates an enabled unit from explicit settings.
func NewUnitWith(s Settings) (*Unit, error) {
	if s == nil {
		return nil, ErrNilSettings
	}
	return &Unit{id: uuid.New(), enabled: true, settings: s}, nil
}

func (u *Unit) ID() uuid.UUID { return u.id }

func (u *Unit) Kind() Kind { return u.Settings().Kind() }

func (u *Unit) Enabled() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.enabled
}

func (u *Unit) SetEnabled(on bool) {
	u.mu.Lock()
	u.enabled = on
	u.mu.Unlock()
}

func (u *Unit) Settings() Settings {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.settings
}

// Set clamps v into the parameter's range. Parameters the kind does not
// have return ErrUnknownParam and leave the settings untouched.
func (u *Unit) Set(id ParamID, v float64) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	next, err := u.settings.with(id, v)
	if err != nil {
		return err
	}
	u.settings = next
	return nil
}

// SetFilterType changes the response of a filter unit.
func (u *Unit) SetFilterType(t filter.Type) error {
	if !t.Valid() {
		return filter.ErrUnknownFilterType
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	fs, ok := u.settings.(FilterSettings)
	if !ok {
		return ErrUnknownParam
	}
	fs.Type = t
	u.settings = fs
	return nil
}

// snapshot reads the enabled flag and settings together.
func (u *Unit) snapshot() (bool, Settings) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.enabled, u.settings
}
