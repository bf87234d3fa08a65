package main

import (
	"errors"
	"io"

	"github.com/manifoldco/promptui"
)

// confirmFunc asks a yes/no question. Anything but an explicit "no" counts as
// yes.
type confirmFunc func(label string) (bool, error)

func promptConfirm(stdin io.ReadCloser, stdout io.WriteCloser) confirmFunc {
	return func(label string) (bool, error) {
		prompt := promptui.Prompt{
			Label:     label,
			IsConfirm: true,
			Default:   "y",
			Stdin:     stdin,
			Stdout:    stdout,
		}
		_, err := prompt.Run()
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, promptui.ErrAbort):
			return false, nil
		default:
			return false, err
		}
	}
}

// nopWriteCloser lets a plain writer serve as the prompt's output.
type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// assumeYes is used when stdin is not a terminal.
func assumeYes(string) (bool, error) {
	return true, nil
}
