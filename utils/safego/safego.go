/*
 * Copyright 2025 Olake By Datazip
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package safego

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/datazip-inc/airlake/utils/logger"
)

var startTime time.Time

// PanicError carries a value recovered from a panic
type PanicError struct {
	Value any
	Stack []byte
}

func (p *PanicError) Error() string {
	if err, ok := p.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(p.Value)
}

func (p *PanicError) Unwrap() error {
	err, _ := p.Value.(error)
	return err
}

// Call runs f and turns a panic into a *PanicError
func Call(f func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()

	return f()
}

// Recovery is deferred at the top of a connector process; it logs the panic
// with its stack and, when exit is set, terminates the process.
func Recovery(exit bool) {
	err := recover()
	if err != nil {
		logger.Error(err)
		// capture stacks trace
		for _, str := range strings.Split(string(debug.Stack()), "\n") {
			logger.Debug(strings.ReplaceAll(str, "\t", ""))
		}
	}
	if exit {
		logger.Infof("Time of execution %v", time.Since(startTime).String())
		if err != nil {
			os.Exit(1)
		}
	}
}

func init() {
	startTime = time.Now()
}
