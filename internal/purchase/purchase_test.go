// Copyright (c) 2026 Coursehub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package purchase

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
TestState_Text verifies states travel as their names and unknown names are refused.
*/
func TestState_Text(t *testing.T) {
	for _, state := range []State{StateIdle, StateAwaitingGateway, StateVerifying, StateGranted, StateFailed} {
		t.Run(state.String(), func(t *testing.T) {
			raw, err := json.Marshal(Status{CourseID: "C1", State: state})
			require.NoError(t, err)

			var decoded Status
			require.NoError(t, json.Unmarshal(raw, &decoded))
			assert.Equal(t, state, decoded.State)
		})
	}

	var state State
	assert.Error(t, state.UnmarshalText([]byte("refunded")))
}
