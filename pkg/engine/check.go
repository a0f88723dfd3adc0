package engine

import (
	"github.com/sirupsen/logrus"
)

// Checker applies the engine error policy to a sequence of calls: each failure
// is logged with the operation name, code and message, and collected. In
// lenient mode the sequence keeps going; in strict mode Check tells the caller
// to stop at the first failure.
type Checker struct {
	log    logrus.FieldLogger
	strict bool
	errs   Errors
}

// NewChecker returns a Checker logging to log.
func NewChecker(log logrus.FieldLogger, strict bool) *Checker {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Checker{log: log, strict: strict}
}

// Check records the outcome of op and reports whether the caller may continue.
func (c *Checker) Check(op string, err error) bool {
	if err == nil {
		return !c.halted()
	}
	err = NewCallError(op, err)
	code := CodeOf(err)
	c.log.WithFields(logrus.Fields{
		"op":   op,
		"code": int(code),
	}).Warnf("engine call failed: %s", code)
	c.errs = append(c.errs, err)
	return !c.halted()
}

// Fail records an error that did not come from an engine call.
func (c *Checker) Fail(err error) {
	if err == nil {
		return
	}
	c.log.WithError(err).Warn("engine sequence failed")
	c.errs = append(c.errs, err)
}

func (c *Checker) halted() bool {
	return c.strict && len(c.errs) > 0
}

// Failed reports whether any call failed.
func (c *Checker) Failed() bool {
	return len(c.errs) > 0
}

// Err returns the collected failures, or nil.
func (c *Checker) Err() error {
	if c.strict && len(c.errs) > 0 {
		return c.errs[0]
	}
	return c.errs.Ret()
}
