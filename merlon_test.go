package merlon

import (
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/warpfork/go-errcat"
)

func TestExitCodeForCategory(t *testing.T) {
	Convey("Every category maps onto its paired exit code", t, func() {
		So(ExitCodeForCategory(nil), ShouldEqual, ExitSuccess)
		So(ExitCodeForCategory(ErrUsage), ShouldEqual, ExitUsage)
		So(ExitCodeForCategory(ErrConfig), ShouldEqual, ExitConfig)
		So(ExitCodeForCategory(ErrNoCommits), ShouldEqual, ExitNoCommits)
		So(ExitCodeForCategory(ErrExtract), ShouldEqual, ExitExtract)
		So(ExitCodeForCategory(ErrArchive), ShouldEqual, ExitArchive)
		So(ExitCodeForCategory(ErrEncrypt), ShouldEqual, ExitEncrypt)
		So(ExitCodeForCategory(ErrPlace), ShouldEqual, ExitPlace)
		So(ExitCodeForCategory(ErrCancelled), ShouldEqual, ExitCancelled)
	})
	Convey("Uncategorized errors map onto a generic nonzero code", t, func() {
		So(ExitCodeForCategory("something else entirely"), ShouldEqual, ExitCode(1))
	})
}

func TestResultEnvelope(t *testing.T) {
	Convey("SetError", t, func() {
		Convey("nil stays nil", func() {
			result := &Event_Result{Path: "/some/artifact.merlon"}
			result.SetError(nil)
			So(result.Error, ShouldBeNil)
		})
		Convey("categorized errors keep their category", func() {
			result := &Event_Result{}
			result.SetError(errcat.Errorf(ErrNoCommits, "nothing to package"))
			So(result.Error, ShouldNotBeNil)
			So(result.Error.Category, ShouldEqual, ErrNoCommits)
			So(result.Error.Msg, ShouldEqual, "nothing to package")
		})
		Convey("plain errors survive with a blank category", func() {
			result := &Event_Result{}
			result.SetError(fmt.Errorf("weird"))
			So(result.Error, ShouldNotBeNil)
			So(result.Error.Category, ShouldEqual, ErrorCategory(""))
			So(result.Error.Msg, ShouldEqual, "weird")
		})
	})
}

func TestMonitorNilChan(t *testing.T) {
	Convey("A zero Monitor swallows events without blocking", t, func() {
		var mon Monitor
		mon.ProgressEvent("extract", "somewhere")
		mon.WarningEvent("warning %d", 1)
		So(mon.Chan, ShouldBeNil)
	})
}
