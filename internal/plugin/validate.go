package plugin

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"

	"github.com/luma-launcher/luma/pkg/plugin"
)

var (
	iidPattern     = regexp.MustCompile(`^org\.[a-z0-9_]+\.PluginInterface/(\d+)\.(\d+)$`)
	versionPattern = regexp.MustCompile(`^\d+(?:\.\d+)?\.\d+$`)
	idPattern      = regexp.MustCompile(`^[a-z0-9_]+$`)
)

// ValidateMetadata checks a locale-resolved manifest against the runtime
// interface version. All rules are checked independently and every
// violation is returned, so an author can fix all problems at once. An
// empty result means the module is loadable.
func ValidateMetadata(md plugin.Metadata, runtimeMajor, runtimeMinor int) []error {
	var errs []error

	if m := iidPattern.FindStringSubmatch(md.IID); m == nil {
		errs = append(errs, errors.Newf(
			"invalid interface id %q, expected %q", md.IID, iidPattern.String()))
	} else {
		major, _ := strconv.Atoi(m[1])
		minor, _ := strconv.Atoi(m[2])

		if major != runtimeMajor {
			errs = append(errs, errors.Wrapf(ErrIncompatibleMajorVersion,
				"%d, expected %d", major, runtimeMajor))
		} else if minor > runtimeMinor {
			errs = append(errs, errors.Wrapf(ErrIncompatibleMinorVersion,
				"%d, supported up to %d", minor, runtimeMinor))
		}
	}

	if !versionPattern.MatchString(md.Version) {
		errs = append(errs, errors.Newf(
			"invalid version %q, use '<major>[.<minor>].<patch>'", md.Version))
	} else if _, err := semver.NewVersion(md.Version); err != nil {
		errs = append(errs, errors.Wrapf(err, "unparsable version %q", md.Version))
	}

	if !idPattern.MatchString(md.ID) {
		errs = append(errs, errors.Newf("invalid plugin id %q, use [a-z0-9_]+", md.ID))
	}

	if md.Name == "" {
		errs = append(errs, errors.New("'name' must not be empty"))
	}

	if md.Description == "" {
		errs = append(errs, errors.New("'description' must not be empty"))
	}

	return errs
}

// joinValidationErrors folds a validation error list into one reportable
// error marked with ErrInvalidMetadata.
func joinValidationErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return errors.Wrap(ErrInvalidMetadata, strings.Join(msgs, "; "))
}
