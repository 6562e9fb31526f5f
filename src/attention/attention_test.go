package attention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ordersaga/src/model"
)

func day(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestSetSemantics(t *testing.T) {
	set := Parse("R4, R1,,R1")
	assert.Equal(t, "R1, R4", set.String())

	set.Add(R1, R5)
	set.Remove(R4)
	assert.Equal(t, "R1, R5", set.String())
	assert.Equal(t, "", Parse("").String())
}

func TestEvaluate(t *testing.T) {
	line := &model.OrderLine{RequestDate: day(2024, 3, 1)}

	t.Run("no dates no flags", func(t *testing.T) {
		assert.Equal(t, Verdict{}, Evaluate(line, nil, nil))
	})

	t.Run("confirmed after request sets R1", func(t *testing.T) {
		l := *line
		l.ConfirmedDate = day(2024, 3, 5)
		assert.True(t, Evaluate(&l, nil, nil).R1)
	})

	t.Run("fresh availability after request sets R1", func(t *testing.T) {
		v := Evaluate(line, nil, &Signal{ConfirmAvailabilityDate: day(2024, 3, 2)})
		assert.True(t, v.R1)
	})

	t.Run("same day is not late", func(t *testing.T) {
		l := *line
		l.ConfirmedDate = day(2024, 3, 1)
		assert.False(t, Evaluate(&l, nil, &Signal{DispatchDate: day(2024, 3, 1)}).R1)
	})

	t.Run("planner attention sets R2", func(t *testing.T) {
		assert.True(t, Evaluate(line, nil, &Signal{ForAttention: true}).R2)
	})

	t.Run("after ETD sets R4", func(t *testing.T) {
		v := Evaluate(line, day(2024, 2, 28), &Signal{DispatchDate: day(2024, 3, 1)})
		assert.True(t, v.R4)
		assert.False(t, v.R1)
	})
}

func TestApplyLeavesR5(t *testing.T) {
	line := &model.OrderLine{AttentionType: "R1, R5"}

	Apply(line, Verdict{R2: true})
	assert.Equal(t, "R2, R5", line.AttentionType)

	Apply(line, Verdict{R2: true})
	assert.Equal(t, "R2, R5", line.AttentionType)

	Clear(line, R5)
	assert.Equal(t, "R2", line.AttentionType)

	Mark(line, R5, R5)
	assert.Equal(t, "R2, R5", line.AttentionType)
}
