package console

import "time"

// Clock abstracts time retrieval so elapsed-time reporting is testable.
type Clock interface {
	Now() time.Time
}
