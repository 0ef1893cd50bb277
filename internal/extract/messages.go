package extract

// Direction indicates whether a message was received or sent.
type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// Message is one scanned message from an opened chat.
// Position 1 is the most recent message.
type Message struct {
	Body      string
	Direction Direction
	Position  int
}

// Match is an identifier found in a message.
type Match struct {
	Value     string
	Position  int
	Direction Direction
}

// FindAcrossMessages scans messages in recency order (position 1 first) and
// keeps the first email and the first phone found. It stops early once both
// are held; that is a latency shortcut only, the result is the same as a
// full scan because first-found wins per identifier. At most max messages
// are consulted (all of them if max <= 0).
func FindAcrossMessages(msgs []Message, max int) (email, phone *Match) {
	for i, m := range msgs {
		if max > 0 && i >= max {
			break
		}
		if email == nil {
			if v, ok := FindEmail(m.Body); ok {
				email = &Match{Value: v, Position: m.Position, Direction: m.Direction}
			}
		}
		if phone == nil {
			if v, ok := FindPhone(m.Body); ok {
				phone = &Match{Value: v, Position: m.Position, Direction: m.Direction}
			}
		}
		if email != nil && phone != nil {
			break
		}
	}
	return email, phone
}
