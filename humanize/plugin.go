package humanize

// Info describes the effect to a host
type Info struct {
	Name       string
	Vendor     string
	UniqueID   int32
	Version    int
	Inputs     int
	Outputs    int
	Parameters int
	Category   string
}

// PluginInfo is the fixed descriptor: stereo in/out, one parameter
func PluginInfo() Info {
	return Info{
		Name:       "Sloth",
		Vendor:     "go-sloth",
		UniqueID:   243723072,
		Version:    1,
		Inputs:     2,
		Outputs:    2,
		Parameters: 1,
		Category:   "Effect",
	}
}

// Capability is a host capability query
type Capability string

const (
	SendEvents       Capability = "sendEvents"
	SendMidiEvent    Capability = "sendMidiEvent"
	ReceiveEvents    Capability = "receiveEvents"
	ReceiveMidiEvent Capability = "receiveMidiEvent"
)

// CanDo answers capability negotiation: MIDI in and out, nothing else
func CanDo(c Capability) bool {
	switch c {
	case SendEvents, SendMidiEvent, ReceiveEvents, ReceiveMidiEvent:
		return true
	}
	return false
}

// ParamVariance is the index of the only parameter
const ParamVariance = 0

// Parameters exposes the variance by index, the way plugin hosts address
// parameters. Unknown indices read as zero and ignore writes.
type Parameters struct {
	Variance *Variance
}

func (p Parameters) Get(index int) float64 {
	if index == ParamVariance {
		return p.Variance.Normalized()
	}
	return 0
}

func (p Parameters) Set(index int, normalized float64) {
	if index == ParamVariance {
		p.Variance.SetNormalized(normalized)
	}
}

func (p Parameters) Name(index int) string {
	if index == ParamVariance {
		return p.Variance.Name()
	}
	return ""
}

func (p Parameters) Text(index int) string {
	if index == ParamVariance {
		return p.Variance.Text()
	}
	return ""
}
