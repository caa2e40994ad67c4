package util

import (
	"fmt"

	"github.com/go-sif/dflow"
)

// SafeCreatePushRuntime instantiates a micro operator's runtime such that panics are recovered and nice error messages are constructed
func SafeCreatePushRuntime(factory dflow.PushRuntimeFactory, output dflow.FrameWriter) (runtime dflow.FrameWriter, err error) {
	defer func() {
		if r := recover(); r != nil {
			if anErr, ok := r.(error); ok {
				err = fmt.Errorf("Push Runtime Panic: %w\nOperator: %s\n%s", anErr, factory.String(), GetTrace())
			} else {
				err = fmt.Errorf("Push Runtime Panic: %v\nOperator: %s\n%s", r, factory.String(), GetTrace())
			}
		} else if err != nil {
			err = fmt.Errorf("Push Runtime Error: %w\nOperator: %s", err, factory.String())
		}
	}()
	runtime, err = factory.CreatePushRuntime(output)
	return
}

// SafeGo runs fn such that panics are recovered and returned as errors, along with a stack trace
func SafeGo(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if anErr, ok := r.(error); ok {
				err = fmt.Errorf("%s Panic: %w\n%s", name, anErr, GetTrace())
			} else {
				err = fmt.Errorf("%s Panic: %v\n%s", name, r, GetTrace())
			}
		}
	}()
	err = fn()
	return
}
