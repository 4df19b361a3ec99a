package logger

import (
	"reflect"
	"testing"
)

type recorder struct {
	lines [][]any
}

func (r *recorder) add(message string, keyvals []any) {
	r.lines = append(r.lines, append([]any{message}, keyvals...))
}

func (r *recorder) Log(m string, kv ...any)   { r.add(m, kv) }
func (r *recorder) Debug(m string, kv ...any) { r.add(m, kv) }
func (r *recorder) Info(m string, kv ...any)  { r.add(m, kv) }
func (r *recorder) Warn(m string, kv ...any)  { r.add(m, kv) }
func (r *recorder) Error(m string, kv ...any) { r.add(m, kv) }
func (r *recorder) Fatal(m string, kv ...any) { r.add(m, kv) }

func TestWith(t *testing.T) {
	t.Cleanup(func() { singleton = nil })

	// before Init everything is dropped
	With("job_id", "a").Info("ignored")
	Info("ignored")

	rec := &recorder{}
	Init(rec)

	log := With("job_id", "j1")
	log.Info("[Queue] running", "total", 3)
	Warn("[Queue] plain")

	want := [][]any{
		{"[Queue] running", "job_id", "j1", "total", 3},
		{"[Queue] plain"},
	}
	if !reflect.DeepEqual(rec.lines, want) {
		t.Fatalf("got %v, want %v", rec.lines, want)
	}
}
