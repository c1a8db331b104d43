package inventory_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flashwarden/flashwarden/internal/inventory"
	"github.com/flashwarden/flashwarden/internal/model"
)

func row(dev, size, manufacturer string) model.DeviceRow {
	return model.DeviceRow{Device: dev, Size: size, Manufacturer: manufacturer}
}

func TestParseRows(t *testing.T) {
	t.Parallel()

	t.Run("full rows", func(t *testing.T) {
		t.Parallel()
		rows := inventory.ParseRows("/dev/sda\t32G\tSanDisk\n/dev/sdb\t16G\tKingston\n")
		require.Equal(t, []model.DeviceRow{
			row("/dev/sda", "32G", "SanDisk"),
			row("/dev/sdb", "16G", "Kingston"),
		}, rows)
	})

	t.Run("trailing fields optional", func(t *testing.T) {
		t.Parallel()
		rows := inventory.ParseRows("/dev/sda\t32G\n/dev/sdb\n")
		require.Equal(t, []model.DeviceRow{
			row("/dev/sda", "32G", ""),
			row("/dev/sdb", "", ""),
		}, rows)
	})

	t.Run("blank and empty-key lines discarded", func(t *testing.T) {
		t.Parallel()
		rows := inventory.ParseRows("\n   \n\t32G\tNoName\n/dev/sdc\n")
		require.Equal(t, []model.DeviceRow{row("/dev/sdc", "", "")}, rows)
	})

	t.Run("fields are trimmed", func(t *testing.T) {
		t.Parallel()
		rows := inventory.ParseRows(" /dev/sda \t 32G \t SanDisk \n")
		require.Equal(t, []model.DeviceRow{row("/dev/sda", "32G", "SanDisk")}, rows)
	})
}

func TestReconcile(t *testing.T) {
	t.Parallel()

	noneActive := func(string) bool { return false }

	t.Run("no previous state", func(t *testing.T) {
		t.Parallel()
		observed := []model.DeviceRow{row("/dev/sda", "32G", "SanDisk")}
		next, forget, changed := inventory.Reconcile(nil, observed, noneActive)
		require.Equal(t, observed, next)
		require.Empty(t, forget)
		require.True(t, changed)
	})

	t.Run("identical sets signal no change", func(t *testing.T) {
		t.Parallel()
		rows := []model.DeviceRow{row("/dev/sda", "32G", "SanDisk"), row("/dev/sdb", "16G", "")}
		next, forget, changed := inventory.Reconcile(rows, rows, noneActive)
		require.Equal(t, rows, next)
		require.Empty(t, forget)
		require.False(t, changed)
	})

	t.Run("vanished device without run is forgotten", func(t *testing.T) {
		t.Parallel()
		previous := []model.DeviceRow{row("/dev/sda", "32G", "SanDisk"), row("/dev/sdb", "16G", "")}
		observed := []model.DeviceRow{row("/dev/sda", "32G", "SanDisk")}
		next, forget, changed := inventory.Reconcile(previous, observed, noneActive)
		require.Equal(t, observed, next)
		require.Equal(t, []string{"/dev/sdb"}, forget)
		require.True(t, changed)
	})

	t.Run("vanished device with active run is retained", func(t *testing.T) {
		t.Parallel()
		previous := []model.DeviceRow{row("/dev/sda", "32G", "SanDisk"), row("/dev/sdb", "16G", "Kingston")}
		observed := []model.DeviceRow{row("/dev/sda", "32G", "SanDisk")}
		active := func(key string) bool { return key == "/dev/sdb" }

		next, forget, changed := inventory.Reconcile(previous, observed, active)
		require.Empty(t, forget)
		require.Contains(t, next, row("/dev/sdb", "16G", "Kingston"))
		// retained rows keep their last-known attributes appended after
		// the observed ones
		require.Equal(t, []model.DeviceRow{
			row("/dev/sda", "32G", "SanDisk"),
			row("/dev/sdb", "16G", "Kingston"),
		}, next)
		// identical to the previous accepted set after retention
		require.False(t, changed)
	})

	t.Run("retention then reappearance uses fresh attributes", func(t *testing.T) {
		t.Parallel()
		previous := []model.DeviceRow{row("/dev/sdb", "16G", "Kingston")}
		observed := []model.DeviceRow{row("/dev/sdb", "16G", "Kingston Digital")}
		active := func(string) bool { return true }

		next, forget, changed := inventory.Reconcile(previous, observed, active)
		require.Empty(t, forget)
		require.Equal(t, observed, next)
		require.True(t, changed)
	})

	t.Run("observed empty keys discarded", func(t *testing.T) {
		t.Parallel()
		observed := []model.DeviceRow{{Device: ""}, row("/dev/sda", "", "")}
		next, _, _ := inventory.Reconcile(nil, observed, noneActive)
		require.Equal(t, []model.DeviceRow{row("/dev/sda", "", "")}, next)
	})

	t.Run("multiple vanished keys split by activity", func(t *testing.T) {
		t.Parallel()
		previous := []model.DeviceRow{
			row("/dev/sda", "32G", ""),
			row("/dev/sdb", "16G", ""),
			row("/dev/sdc", "8G", ""),
		}
		active := func(key string) bool { return key == "/dev/sdb" }

		next, forget, changed := inventory.Reconcile(previous, nil, active)
		require.Equal(t, []model.DeviceRow{row("/dev/sdb", "16G", "")}, next)
		require.Equal(t, []string{"/dev/sda", "/dev/sdc"}, forget)
		require.True(t, changed)
	})
}
