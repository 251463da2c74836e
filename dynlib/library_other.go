//go:build !(darwin || linux)

package dynlib

import "github.com/user-none/retrobridge/retro"

// Library is unavailable on this platform; Open always fails.
type Library struct{}

// Open reports ErrUnsupportedPlatform.
func Open(path string) (*Library, error) {
	return nil, ErrUnsupportedPlatform
}

func (l *Library) Close() error                                      { return nil }
func (l *Library) Path() string                                      { return "" }
func (l *Library) SetEnvironment(cb retro.EnvironmentFunc)           {}
func (l *Library) SetVideoRefresh(cb retro.VideoRefreshFunc)         {}
func (l *Library) SetAudioSample(cb retro.AudioSampleFunc)           {}
func (l *Library) SetAudioSampleBatch(cb retro.AudioSampleBatchFunc) {}
func (l *Library) SetInputPoll(cb retro.InputPollFunc)               {}
func (l *Library) SetInputState(cb retro.InputStateFunc)             {}
func (l *Library) Init()                                             {}
func (l *Library) Deinit()                                           {}
func (l *Library) LoadGame(game retro.GameInfo) bool                 { return false }
func (l *Library) UnloadGame()                                       {}
func (l *Library) Run()                                              {}
func (l *Library) Reset()                                            {}
func (l *Library) SystemInfo() retro.SystemInfo                      { return retro.SystemInfo{} }
func (l *Library) AVInfo() retro.AVInfo                              { return retro.AVInfo{} }
func (l *Library) APIVersion() uint                                  { return 0 }
