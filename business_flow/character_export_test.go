package businessflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestCharacterRowCell(t *testing.T) {
	first, err := characterRowCell(0)
	require.NoError(t, err)
	assert.Equal(t, "A2", first)

	last, err := characterRowCell(excelize.TotalRows - 2)
	require.NoError(t, err)
	assert.Equal(t, "A1048576", last)

	_, err = characterRowCell(excelize.TotalRows - 1)
	require.Error(t, err)
	assert.Equal(t, "EXCEL_WRITE_ERROR", ErrorCode(err))
	assert.ErrorIs(t, err, excelize.ErrMaxRows)
}
