package domain

import "time"

// Clock abstrai o relógio para que testes simulem a expiração da janela sem sleep.
type Clock interface {
	Now() time.Time
}

// SystemClock usa time.Now.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapta uma função para Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
