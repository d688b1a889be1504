package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueSubject(t *testing.T) {
	t.Parallel()

	s := NewValueSubject(false)

	var got []bool
	var order []int
	cancel1 := s.Observe(func(v bool) {
		got = append(got, v)
		order = append(order, 1)
	})
	cancel2 := s.Observe(func(bool) { order = append(order, 2) })
	assert.Empty(t, got, "subscribing must not call the observer")
	assert.Equal(t, 2, s.Len())

	assert.False(t, s.SetIfChanged(false))
	assert.Empty(t, got)

	assert.True(t, s.SetIfChanged(true))
	assert.Equal(t, []bool{true}, got)

	s.SetAlways(true)
	assert.Equal(t, []bool{true, true}, got)
	assert.Equal(t, []int{1, 2, 1, 2}, order)

	cancel1()
	cancel1()
	assert.Equal(t, 1, s.Len())

	s.SetAlways(true)
	assert.Equal(t, []bool{true, true}, got)
	assert.Equal(t, []int{1, 2, 1, 2, 2}, order)

	cancel2()
	assert.Equal(t, 0, s.Len())
	assert.True(t, s.Get())
}

func TestValueSubjectObserverReads(t *testing.T) {
	t.Parallel()

	s := NewValueSubject(0)
	var seen int
	s.Observe(func(int) { seen = s.Get() })

	s.SetAlways(5)
	assert.Equal(t, 5, seen)
}
