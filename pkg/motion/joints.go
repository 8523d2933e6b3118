// Package motion is the robot's motion primitive library: the joints of the
// hand, routines stored as data, and the actuators that move the joints.
package motion

// Joint identifies one actuated joint of the hand.
type Joint string

// Finger joints, base to tip, then the wrist servo and the wrist LED.
const (
	IndexBase Joint = "index_base"
	IndexMid  Joint = "index_mid"
	IndexTip  Joint = "index_tip"

	MiddleBase Joint = "middle_base"
	MiddleMid  Joint = "middle_mid"
	MiddleTip  Joint = "middle_tip"

	RingBase Joint = "ring_base"
	RingMid  Joint = "ring_mid"
	RingTip  Joint = "ring_tip"

	PinkyBase Joint = "pinky_base"
	PinkyMid  Joint = "pinky_mid"
	PinkyTip  Joint = "pinky_tip"

	ThumbBase Joint = "thumb_base"
	ThumbMid  Joint = "thumb_mid"
	ThumbTip  Joint = "thumb_tip"

	Wrist Joint = "wrist"

	// WristLED is driven like a joint: angles of 90 and above switch it on.
	WristLED Joint = "wrist_led"
)

// AllJoints returns the sixteen servo joints in channel order, without the LED.
func AllJoints() []Joint {
	return []Joint{
		IndexBase, IndexMid, IndexTip,
		MiddleBase, MiddleMid, MiddleTip,
		RingBase, RingMid, RingTip,
		PinkyBase, PinkyMid, PinkyTip,
		ThumbBase, ThumbMid, ThumbTip,
		Wrist,
	}
}

// Valid reports whether j is a servo joint or the wrist LED.
func (j Joint) Valid() bool {
	if j == WristLED {
		return true
	}
	for _, k := range AllJoints() {
		if k == j {
			return true
		}
	}
	return false
}

// DefaultChannels is the servo driver channel each joint is wired to on the
// original hand.
func DefaultChannels() map[Joint]int {
	return map[Joint]int{
		IndexBase: 8, IndexMid: 11, IndexTip: 7,
		MiddleBase: 2, MiddleMid: 0, MiddleTip: 6,
		RingBase: 4, RingMid: 5, RingTip: 3,
		PinkyBase: 10, PinkyMid: 9, PinkyTip: 1,
		ThumbBase: 12, ThumbMid: 13, ThumbTip: 14,
		Wrist: 15,
	}
}

// StraightPose is every finger straight, the reference every routine
// offsets from.
func StraightPose() map[Joint]float64 {
	return map[Joint]float64{
		IndexBase: 76, IndexMid: 15, IndexTip: 55,
		MiddleBase: 87, MiddleMid: 44, MiddleTip: 58,
		RingBase: 85, RingMid: 35, RingTip: 60,
		PinkyBase: 88, PinkyMid: 45, PinkyTip: 45,
		ThumbBase: 88, ThumbMid: 48, ThumbTip: 78,
	}
}
