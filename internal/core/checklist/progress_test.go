package checklist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(v bool) *bool { return &v }

func testTemplate() Template {
	return Template{
		ID:       "tmpl-brakes",
		Name:     "Brake Service",
		Category: "brakes",
		Items: []Item{
			{ID: "pads", Question: "Pads replaced?", AnswerType: AnswerBoolean, DisplayOrder: 1, Required: true},
			{ID: "torque", Question: "Wheel torque (Nm)", AnswerType: AnswerNumber, DisplayOrder: 2, Required: true},
			{ID: "photo", Question: "Photo of installed pads", AnswerType: AnswerPhoto, DisplayOrder: 3, Required: true},
			{ID: "notes", Question: "Additional notes", AnswerType: AnswerText, DisplayOrder: 4, Required: false},
		},
	}
}

func TestItemSatisfied(t *testing.T) {
	tests := []struct {
		name string
		item Item
		resp Response
		want bool
	}{
		{"boolean answered true", Item{AnswerType: AnswerBoolean}, Response{Value: BoolValue(true)}, true},
		{"boolean answered false", Item{AnswerType: AnswerBoolean}, Response{Value: BoolValue(false)}, true},
		{"boolean unanswered", Item{AnswerType: AnswerBoolean}, Response{}, false},
		{"text non-empty", Item{AnswerType: AnswerText}, Response{Value: TextValue("ok")}, true},
		{"text empty", Item{AnswerType: AnswerText}, Response{Value: TextValue("")}, false},
		{"text whitespace only", Item{AnswerType: AnswerText}, Response{Value: TextValue("   ")}, false},
		{"number zero counts", Item{AnswerType: AnswerNumber}, Response{Value: NumberValue(0)}, true},
		{"number unanswered", Item{AnswerType: AnswerNumber}, Response{}, false},
		{"photo with ref", Item{AnswerType: AnswerPhoto}, Response{Value: PhotoValue("blob://p1")}, true},
		{"photo without ref", Item{AnswerType: AnswerPhoto}, Response{}, false},
		{"signature with ref", Item{AnswerType: AnswerSignature}, Response{Value: SignatureValue("sig://s1")}, true},
		{"signature without ref", Item{AnswerType: AnswerSignature}, Response{}, false},
		{"wrong value shape", Item{AnswerType: AnswerPhoto}, Response{Value: TextValue("not a photo")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ItemSatisfied(tt.item, tt.resp))
		})
	}
}

func TestProgress(t *testing.T) {
	tmpl := testTemplate()
	now := time.Now()

	t.Run("empty template is zero", func(t *testing.T) {
		assert.Equal(t, 0, Progress(Template{}, Instance{}))
	})

	t.Run("denominator is all items", func(t *testing.T) {
		inst := Start(tmpl, "inst-1", "order-1", now)
		inst, err := Respond(tmpl, inst, "pads", BoolValue(true), now)
		require.NoError(t, err)
		assert.Equal(t, 25, inst.ProgressPercent)
	})

	t.Run("three of four is 75", func(t *testing.T) {
		inst := Start(tmpl, "inst-1", "order-1", now)
		var err error
		inst, err = Respond(tmpl, inst, "pads", BoolValue(true), now)
		require.NoError(t, err)
		inst, err = Respond(tmpl, inst, "torque", NumberValue(110), now)
		require.NoError(t, err)
		inst, err = Respond(tmpl, inst, "photo", PhotoValue("blob://p1"), now)
		require.NoError(t, err)
		assert.Equal(t, 75, inst.ProgressPercent)
	})

	t.Run("re-answering does not double count", func(t *testing.T) {
		inst := Start(tmpl, "inst-1", "order-1", now)
		var err error
		inst, err = Respond(tmpl, inst, "pads", BoolValue(true), now)
		require.NoError(t, err)
		inst, err = Respond(tmpl, inst, "pads", BoolValue(false), now.Add(time.Minute))
		require.NoError(t, err)
		assert.Equal(t, 25, inst.ProgressPercent)
		assert.Len(t, inst.Responses, 1)
	})

	t.Run("monotone under answering sequence", func(t *testing.T) {
		inst := Start(tmpl, "inst-1", "order-1", now)
		prev := inst.ProgressPercent
		for _, step := range []struct {
			item  string
			value Value
		}{
			{"pads", BoolValue(true)},
			{"pads", BoolValue(true)},
			{"torque", NumberValue(110)},
			{"notes", TextValue("front axle only")},
			{"photo", PhotoValue("blob://p1")},
		} {
			var err error
			inst, err = Respond(tmpl, inst, step.item, step.value, now)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, inst.ProgressPercent, prev)
			prev = inst.ProgressPercent
		}
		assert.Equal(t, 100, prev)
	})
}

func TestCanFinalize(t *testing.T) {
	tmpl := testTemplate()
	now := time.Now()

	t.Run("true with only required answered", func(t *testing.T) {
		inst := Start(tmpl, "inst-1", "order-1", now)
		var err error
		inst, err = Respond(tmpl, inst, "pads", BoolValue(true), now)
		require.NoError(t, err)
		inst, err = Respond(tmpl, inst, "torque", NumberValue(110), now)
		require.NoError(t, err)
		inst, err = Respond(tmpl, inst, "photo", PhotoValue("blob://p1"), now)
		require.NoError(t, err)

		assert.True(t, inst.CanFinalize)
		assert.Empty(t, MissingRequired(tmpl, inst))
		assert.Equal(t, 75, inst.ProgressPercent)
	})

	t.Run("agrees with missing required", func(t *testing.T) {
		inst := Start(tmpl, "inst-1", "order-1", now)
		assert.Equal(t, len(MissingRequired(tmpl, inst)) == 0, CanFinalize(tmpl, inst))

		var err error
		inst, err = Respond(tmpl, inst, "pads", BoolValue(true), now)
		require.NoError(t, err)
		assert.Equal(t, len(MissingRequired(tmpl, inst)) == 0, CanFinalize(tmpl, inst))
	})

	t.Run("missing required ordered by display order", func(t *testing.T) {
		inst := Start(tmpl, "inst-1", "order-1", now)
		missing := MissingRequired(tmpl, inst)
		require.Len(t, missing, 3)
		assert.Equal(t, "pads", missing[0].ID)
		assert.Equal(t, "torque", missing[1].ID)
		assert.Equal(t, "photo", missing[2].ID)
	})
}

func TestEffectiveRequired(t *testing.T) {
	t.Run("override wins over template flag", func(t *testing.T) {
		item := Item{Required: true, RequiredOverride: boolPtr(false)}
		assert.False(t, item.EffectiveRequired())

		item = Item{Required: false, RequiredOverride: boolPtr(true)}
		assert.True(t, item.EffectiveRequired())
	})

	t.Run("falls back to template flag", func(t *testing.T) {
		assert.True(t, Item{Required: true}.EffectiveRequired())
		assert.False(t, Item{Required: false}.EffectiveRequired())
	})

	t.Run("override changes finalize gating", func(t *testing.T) {
		tmpl := testTemplate()
		// Catalog demotes the photo requirement.
		tmpl.Items[2].RequiredOverride = boolPtr(false)

		now := time.Now()
		inst := Start(tmpl, "inst-1", "order-1", now)
		var err error
		inst, err = Respond(tmpl, inst, "pads", BoolValue(true), now)
		require.NoError(t, err)
		inst, err = Respond(tmpl, inst, "torque", NumberValue(110), now)
		require.NoError(t, err)

		assert.True(t, inst.CanFinalize)
	})
}
