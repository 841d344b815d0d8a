package migrate

import "time"

func SetCreateNow(fn func() time.Time) func() {
	prev := createNow
	createNow = fn
	return func() { createNow = prev }
}
