package bridge

// Config holds the construction-time tuning values every backend reads:
// timing thresholds for press/tap-tempo gestures, the actuator counts a
// pedal ships with, and the keycode layout a libinput-style device reports.
type Config struct {
	LongPressMS          uint32
	TapHysteresisMS      uint32
	TapTimeoutMS         uint32
	TapTimeoutOverflowMS uint32
	NumEncoders          int
	NumFootswitches      int
	NumLeds              int

	// Keycode bases for LibinputBackend.
	EncoderClickBase    uint16
	EncoderLeftBase     uint16
	EncoderRightBase    uint16
	FootswitchClickBase uint16
}

// Linux reserves BTN_TRIGGER_HAPPY1..BTN_TRIGGER_HAPPY40 (0x2c0-0x2e7) in
// input-event-codes.h for vendor-specific extra buttons; the default
// keycode bases below lay out four 16-wide bands starting at
// BTN_TRIGGER_HAPPY1 (0x2c0, 0x2d0, 0x2e0, 0x2f0) so a device with the stock
// keymap works with zero configuration. Only the first three bands start
// inside that range; the footswitch band (0x2f0 onward) lies past
// BTN_TRIGGER_HAPPY40.
const defaultKeycodeBase = 0x2c0

// DefaultConfig returns the defaults a stock pedal ships with.
func DefaultConfig() Config {
	return Config{
		LongPressMS:          500,
		TapHysteresisMS:      750,
		TapTimeoutMS:         3000,
		TapTimeoutOverflowMS: 50,
		NumEncoders:          6,
		NumFootswitches:      3,
		NumLeds:              3,

		EncoderClickBase:    defaultKeycodeBase,
		EncoderLeftBase:     defaultKeycodeBase + 16,
		EncoderRightBase:    defaultKeycodeBase + 32,
		FootswitchClickBase: defaultKeycodeBase + 48,
	}
}
