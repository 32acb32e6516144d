package modem_test

import (
	gomock "go.uber.org/mock/gomock"
	"i4.energy/across/linkstation/modem"
)

type MockSequenceBuilder struct {
	port  *modem.MockPort
	calls []any
}

func NewMockSequence(port *modem.MockPort) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		port:  port,
		calls: []any{},
	}
}

// Exchange expects cmd to be written and answers with resp in a single read.
func (b *MockSequenceBuilder) Exchange(cmd, resp string) *MockSequenceBuilder {
	wire := []byte(cmd + "\r\n")
	b.calls = append(b.calls,
		b.port.EXPECT().ResetInputBuffer().Return(nil),
		b.port.EXPECT().Write(wire).Return(len(wire), nil),
		b.port.EXPECT().Drain().Return(nil),
		b.port.EXPECT().Read(gomock.Any()).DoAndReturn(func(p []byte) (int, error) {
			return copy(p, resp), nil
		}),
	)
	return b
}

// WriteFails expects cmd to be written and fails the write with err.
func (b *MockSequenceBuilder) WriteFails(cmd string, err error) *MockSequenceBuilder {
	b.calls = append(b.calls,
		b.port.EXPECT().ResetInputBuffer().Return(nil),
		b.port.EXPECT().Write([]byte(cmd+"\r\n")).Return(0, err),
	)
	return b
}

// Silent expects cmd to be written and never answers.
func (b *MockSequenceBuilder) Silent(cmd string) *MockSequenceBuilder {
	wire := []byte(cmd + "\r\n")
	b.calls = append(b.calls,
		b.port.EXPECT().ResetInputBuffer().Return(nil),
		b.port.EXPECT().Write(wire).Return(len(wire), nil),
		b.port.EXPECT().Drain().Return(nil),
		b.port.EXPECT().Read(gomock.Any()).Return(0, nil).MinTimes(1),
	)
	return b
}

func (b *MockSequenceBuilder) Close() *MockSequenceBuilder {
	b.calls = append(b.calls, b.port.EXPECT().Close().Return(nil))
	return b
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}
