package capture

import (
	"fmt"

	"github.com/gen2brain/malgo"
)

// InputDevices returns the names of usable audio input devices with the
// system default first and removed from any later position.
func InputDevices() ([]string, error) {
	if !platformSupported() {
		return nil, ErrNotSupported
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("initializing audio context: %w", err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("enumerating audio devices: %w", err)
	}
	if len(infos) == 0 {
		return nil, ErrNoDevice
	}

	names := make([]string, 0, len(infos))
	defaultName := ""
	for i := range infos {
		name := infos[i].Name()
		if name == "" {
			continue
		}
		if infos[i].IsDefault != 0 && defaultName == "" {
			defaultName = name
		}
		names = append(names, name)
	}
	return orderDevices(names, defaultName), nil
}

// orderDevices places the default device first and drops duplicates of it
// from the rest of the list, preserving the order of the others.
func orderDevices(names []string, defaultName string) []string {
	if defaultName == "" {
		return names
	}
	out := make([]string, 0, len(names)+1)
	out = append(out, defaultName)
	for _, n := range names {
		if n != defaultName {
			out = append(out, n)
		}
	}
	return out
}
