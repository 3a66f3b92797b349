package source_test

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/spanline/internal/adapters/source"
)

func TestClassify(t *testing.T) {
	Convey("Given raw table load failures", t, func() {
		cases := []struct {
			err  error
			kind error
			name string
		}{
			{fs.ErrNotExist, source.ErrMissing, "missing"},
			{errors.New("IO Error: No files found that match the pattern"), source.ErrMissing, "missing"},
			{errors.New("HTTP 404 (NoSuchKey)"), source.ErrMissing, "missing"},
			{errors.New("AccessDenied: bucket policy"), source.ErrAuth, "auth"},
			{errors.New("could not reach latest/api/token"), source.ErrAuth, "auth"},
			{errors.New("connection reset by peer"), source.ErrRemote, "remote"},
		}

		for _, c := range cases {
			Convey(fmt.Sprintf("When classifying %q", c.err), func() {
				le := source.Classify("uc", "nova.instances", c.err)

				Convey("Then the kind is "+c.name, func() {
					So(errors.Is(le, c.kind), ShouldBeTrue)
					So(errors.Is(le, c.err), ShouldBeTrue)
					So(source.KindName(le), ShouldEqual, c.name)
					So(le.Recoverable(), ShouldEqual, c.kind == source.ErrMissing)
					So(le.Error(), ShouldContainSubstring, "nova.instances")
				})
			})
		}

		Convey("When the error is already classified", func() {
			first := source.Classify("uc", "blazar.leases", errors.New("AccessDenied"))
			wrapped := fmt.Errorf("site uc: %w", first)
			So(source.Classify("uc", "blazar.leases", wrapped), ShouldEqual, first)
		})

		Convey("When there is no error", func() {
			So(source.Classify("uc", "blazar.leases", nil), ShouldBeNil)
			So(source.KindName(errors.New("x")), ShouldEqual, "other")
		})
	})
}
