package actions

import (
	"time"

	"github.com/teslashibe/go-pidog/pkg/state"
)

// Look is a Step variant that routes an absolute head intent through the
// head controller instead of the raw servos, so face tracking's return
// pose and the posture bias stay coherent.
type Look struct {
	Yaw, Pitch, Roll *float64
}

func deg(v float64) *float64 { return &v }

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// builtinCatalog is every macro the perform_action tool can name.
// Firmware gaits go through DoAction; expressive head moves are explicit
// servo frames (re-synced into the controller afterward); head turns are
// controller intents.
func builtinCatalog() map[string]Macro {
	macros := []Macro{
		// Posture and gait, firmware-resident.
		{Name: "sit", Steps: []Step{{Action: "sit", Speed: 70}}, Posture: state.PostureSitting},
		{Name: "stand", Steps: []Step{{Action: "stand", Speed: 70}}, Posture: state.PostureStanding},
		{Name: "sit_2_stand", Steps: []Step{{Action: "stand", Speed: 75}}, Posture: state.PostureStanding},
		{Name: "lie", Steps: []Step{{Action: "lie", Speed: 70}}, Posture: state.PostureSitting},
		{Name: "walk_forward", Requires: state.PostureStanding, Steps: []Step{{Action: "forward", Speed: 100, Count: 5}}, Posture: state.PostureStanding},
		{Name: "walk_backward", Requires: state.PostureStanding, Steps: []Step{{Action: "backward", Speed: 100, Count: 5}}, Posture: state.PostureStanding},
		{Name: "walk_left", Requires: state.PostureStanding, Steps: []Step{{Action: "turn_left", Speed: 100, Count: 5}}, Posture: state.PostureStanding},
		{Name: "walk_right", Requires: state.PostureStanding, Steps: []Step{{Action: "turn_right", Speed: 100, Count: 5}}, Posture: state.PostureStanding},
		{Name: "push_up", Requires: state.PostureStanding, Steps: []Step{{Action: "push_up", Speed: 80, Count: 3}}, Posture: state.PostureStanding},
		{Name: "stretch", Steps: []Step{{Action: "stretch", Speed: 80}}, Posture: state.PostureSitting},
		{Name: "doze_off", Steps: []Step{{Action: "doze_off", Speed: 100}}, Posture: state.PostureStanding},
		{Name: "wag_tail", Steps: []Step{{Action: "wag_tail", Speed: 100, Count: 5}}},
		{Name: "body_twisting", Steps: []Step{{Action: "twist_body", Speed: 90, Count: 3}}},
		{Name: "feet_shake", Steps: []Step{{Action: "shake_feet", Speed: 90, Count: 2}}},
		{Name: "attack_posture", Steps: []Step{{Action: "half_sit", Speed: 85}}, Posture: state.PostureStanding},

		// Tricks that want the dog seated first.
		{Name: "scratch", Requires: state.PostureSitting, Steps: []Step{{Action: "scratch", Speed: 90, Count: 6}}, Posture: state.PostureSitting},
		{Name: "handshake", Requires: state.PostureSitting, Steps: []Step{{Action: "hand_shake", Speed: 90, Count: 3}}, Posture: state.PostureSitting},
		{Name: "high_five", Requires: state.PostureSitting, Steps: []Step{{Action: "high_five", Speed: 90}}, Posture: state.PostureSitting},
		{Name: "lick_hand", Requires: state.PostureSitting, Steps: []Step{{Action: "lick_hand", Speed: 80}}, Posture: state.PostureSitting},

		// Voice, with the matching body language.
		{
			Name: "bark",
			Steps: []Step{
				{Sound: "single_bark_1.wav"},
				{Head: []HeadFrame{{Pitch: 10, Hold: ms(120)}, {Pitch: -10, Hold: ms(120)}, {Hold: ms(150)}}},
			},
			SyncHead: true,
		},
		{
			Name:    "bark_harder",
			Steps:   []Step{{Sound: "single_bark_2.wav"}, {Action: "half_sit", Speed: 95}},
			Posture: state.PostureStanding,
		},
		{
			Name:    "howling",
			Steps:   []Step{{Head: []HeadFrame{{Pitch: 30, Hold: ms(400)}}}, {Sound: "howling.wav"}, {Pause: ms(1500)}, {Head: []HeadFrame{{Hold: ms(400)}}}},
			Posture: state.PostureSitting,
			SyncHead: true,
		},
		{
			Name:  "pant",
			Steps: []Step{{Sound: "pant.wav"}, {Head: []HeadFrame{{Pitch: -6, Hold: ms(150)}, {Pitch: 2, Hold: ms(150)}, {Pitch: -6, Hold: ms(150)}, {Hold: ms(150)}}}},
			SyncHead: true,
		},

		// Expressive head moves on the raw servos.
		{
			Name: "shake_head",
			Steps: []Step{{Head: []HeadFrame{
				{Yaw: 40, Hold: ms(200)}, {Yaw: -40, Hold: ms(250)}, {Yaw: 30, Hold: ms(250)}, {Yaw: -30, Hold: ms(250)}, {Hold: ms(200)},
			}}},
			SyncHead: true,
		},
		{
			Name: "nod",
			Steps: []Step{{Head: []HeadFrame{
				{Pitch: -18, Hold: ms(220)}, {Pitch: 4, Hold: ms(220)}, {Pitch: -18, Hold: ms(220)}, {Hold: ms(220)},
			}}},
			SyncHead: true,
		},
		{
			Name: "think",
			Steps: []Step{{Head: []HeadFrame{
				{Yaw: 25, Roll: 12, Pitch: 15, Hold: ms(500)},
			}}},
			SyncHead: true,
		},
		{
			Name: "recall",
			Steps: []Step{{Head: []HeadFrame{
				{Yaw: -20, Roll: -8, Pitch: 20, Hold: ms(450)}, {Hold: ms(350)},
			}}},
			SyncHead: true,
		},
		{
			Name:     "tilt_head_left",
			Steps:    []Step{{Head: []HeadFrame{{Roll: -22, Hold: ms(350)}}}},
			SyncHead: true,
		},
		{
			Name:     "tilt_head_right",
			Steps:    []Step{{Head: []HeadFrame{{Roll: 22, Hold: ms(350)}}}},
			SyncHead: true,
		},
		{
			Name: "relax_neck",
			Steps: []Step{{Head: []HeadFrame{
				{Pitch: -20, Hold: ms(400)}, {Pitch: 0, Hold: ms(400)}, {Pitch: -20, Hold: ms(400)}, {Hold: ms(300)},
			}}},
			SyncHead: true,
		},
		{
			Name: "fluster",
			Steps: []Step{{Head: []HeadFrame{
				{Yaw: 12, Roll: 6, Hold: ms(120)}, {Yaw: -12, Roll: -6, Hold: ms(120)}, {Yaw: 12, Roll: 6, Hold: ms(120)}, {Hold: ms(150)},
			}}},
			SyncHead: true,
		},
		{
			Name:     "surprise",
			Steps:    []Step{{Head: []HeadFrame{{Pitch: 25, Hold: ms(180)}}}, {Action: "sit", Speed: 95}},
			Posture:  state.PostureSitting,
			SyncHead: true,
		},
		{
			Name:     "alert",
			Steps:    []Step{{Head: []HeadFrame{{Pitch: 15, Hold: ms(200)}}}, {Action: "sit", Speed: 90}, {Sound: "single_bark_1.wav"}},
			Posture:  state.PostureSitting,
			SyncHead: true,
		},
		{
			Name: "bored",
			Steps: []Step{{Head: []HeadFrame{
				{Yaw: 7, Pitch: 5, Hold: ms(400)}, {Yaw: -7, Pitch: 5, Hold: ms(400)}, {Yaw: 7, Pitch: -5, Hold: ms(400)}, {Yaw: -7, Pitch: -5, Hold: ms(400)},
			}}},
			SyncHead: true,
		},
	}

	// Head turns are controller intents, not raw servo frames: the base
	// pose must move so tracking and bias composition stay correct.
	turns := []struct {
		name string
		look Look
	}{
		{"turn_head_forward", Look{Yaw: deg(0), Pitch: deg(0), Roll: deg(0)}},
		{"turn_head_left", Look{Yaw: deg(60)}},
		{"turn_head_right", Look{Yaw: deg(-60)}},
		{"turn_head_up", Look{Pitch: deg(25)}},
		{"turn_head_down", Look{Pitch: deg(-25)}},
		{"turn_head_up_left", Look{Yaw: deg(25), Pitch: deg(25)}},
		{"turn_head_up_right", Look{Yaw: deg(-25), Pitch: deg(25)}},
		{"turn_head_down_left", Look{Yaw: deg(25), Pitch: deg(-25)}},
		{"turn_head_down_right", Look{Yaw: deg(-25), Pitch: deg(-25)}},
	}
	for _, t := range turns {
		macros = append(macros, Macro{Name: t.name, Steps: []Step{{LookAt: &t.look}}})
	}

	out := make(map[string]Macro, len(macros))
	for _, m := range macros {
		out[m.Name] = m
	}
	return out
}
