package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOrder_Priority(t *testing.T) {
	tests := []struct {
		name     string
		priority int
		wantErr  bool
	}{
		{"lowest", 1, false},
		{"highest", 5, false},
		{"zero", 0, true},
		{"six", 6, true},
		{"negative", -3, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := NewOrder("Ava", "Robot", tt.priority, "10 Snow Rd", "")
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, "priority", verr.Field)
				assert.Empty(t, o.ID)
				return
			}
			require.NoError(t, err)
			assert.True(t, strings.HasPrefix(o.ID, "ord_"))
			assert.Equal(t, tt.priority, o.Priority)
		})
	}
}

func TestNewToy_Validation(t *testing.T) {
	_, err := NewToy("Sled", "Outdoor", 90, 2)
	require.NoError(t, err)

	_, err = NewToy("", "Outdoor", 90, 2)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewToy("Sled", "Outdoor", 0, 2)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewToy("Sled", "Outdoor", 90, -1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestToy_Reserve(t *testing.T) {
	toy := Toy{Name: "Sled", Category: "Outdoor", Cost: 90, Stock: 1}
	assert.True(t, toy.Reserve())
	assert.Equal(t, 0, toy.Stock)
	assert.False(t, toy.Reserve())
	assert.Equal(t, 0, toy.Stock)
}

func TestElf_AssignConsumesCapacity(t *testing.T) {
	elf, err := NewElf("Buddy", []string{"Soft", " Blocks", "Soft", ""}, 120)
	require.NoError(t, err)
	assert.Equal(t, []string{"Blocks", "Soft"}, elf.Skills)
	assert.Equal(t, 120, elf.Shift)

	bear := Toy{Name: "Teddy Bear", Category: "Soft", Cost: 30}
	robot := Toy{Name: "Robot", Category: "Electronics", Cost: 50}
	big := Toy{Name: "Castle", Category: "Blocks", Cost: 100}

	order := Order{ID: "ord_1", Child: "Mia", Address: "1 Holly Ln"}
	assert.True(t, elf.Assign(order, bear))
	assert.False(t, elf.Assign(order, robot), "missing skill")
	assert.False(t, elf.Assign(order, big), "not enough capacity")

	assert.Equal(t, 90, elf.Capacity)
	assert.Equal(t, 30, elf.Used())
	require.Len(t, elf.Assigned, 1)
	assert.Equal(t, Job{OrderID: "ord_1", Child: "Mia", Toy: "Teddy Bear", Cost: 30, Address: "1 Holly Ln"}, elf.Assigned[0])

	clone := elf.Clone()
	elf.Reset()
	assert.Equal(t, 120, elf.Capacity)
	assert.Empty(t, elf.Assigned)
	assert.Len(t, clone.Assigned, 1, "clone is detached")
}

func TestNewElf_NegativeCapacity(t *testing.T) {
	_, err := NewElf("Jingle", []string{"Electronics"}, -1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestBuildMinutes(t *testing.T) {
	assert.InDelta(t, 5.0, Toy{Cost: 50}.BuildMinutes(), 1e-9)
	assert.InDelta(t, 3.0, Job{Cost: 30}.BuildMinutes(), 1e-9)
}
