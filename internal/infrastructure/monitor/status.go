package monitor

import "time"

// Status is the result of one probe round.
type Status struct {
	PostgreSQL bool      `json:"postgresql"`
	Redis      bool      `json:"redis"`
	Buffer     bool      `json:"buffer"`
	BufferSize int       `json:"buffer_size"`
	LastCheck  time.Time `json:"last_check"`
}

// Online is true when both primary stores answered. Profile writes are
// buffered while it is false.
func (s Status) Online() bool {
	return s.PostgreSQL && s.Redis
}

// Unhealthy names the dependencies that failed their last probe.
func (s Status) Unhealthy() []string {
	var down []string
	if !s.PostgreSQL {
		down = append(down, "postgresql")
	}
	if !s.Redis {
		down = append(down, "redis")
	}
	if !s.Buffer {
		down = append(down, "buffer")
	}
	return down
}
