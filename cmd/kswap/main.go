package main

import (
	"os"

	util "github.com/bietkhonhungvandi212/kswap/internal/utils"
	"github.com/sirupsen/logrus"
	"github.com/tebeka/atexit"
)

func main() {
	a := &app{out: os.Stdout, log: logrus.StandardLogger()}
	defer halt(a)

	if err := newRootCmd(a).Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

// halt turns a kernel panic into a logged stop. Registered cleanups (swap
// store, monitor) still run.
func halt(a *app) {
	r := recover()
	if r == nil {
		return
	}
	kerr, ok := r.(*util.KernelError)
	if !ok {
		panic(r)
	}
	a.log.WithFields(logrus.Fields(kerr.Context)).WithError(kerr).Error("kernel panic: system halted")
	atexit.Exit(2)
}
