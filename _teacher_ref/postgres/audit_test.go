package postgres

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// DataRetentionPolicy represents data retention configuration
type DataRetentionPolicy struct {
	TableName        string        `db:"table_name"`
	RetentionPeriod  time.Duration `db:"retention_period"`
	ArchiveAfter     time.Duration `db:"archive_after"`
	DeleteAfter      time.Duration `db:"delete_after"`
	ComplianceReason string        `db:"compliance_reason"`
	Enabled          bool          `db:"enabled"`
}

// PointInTimeSnapshot represents a database snapshot for recovery
type PointInTimeSnapshot struct {
	SnapshotID   string    `db:"snapshot_id"`
	Timestamp    time.Time `db:"timestamp"`
	Description  string    `db:"description"`
	Size         int64     `db:"size"`
	Checksum     string    `db:"checksum"`
	Status       string    `db:"status"` // creating, completed, failed
	ExpiresAt    time.Time `db:"expires_at"`
	CreatedAt    time.Time `db:"created_at"`
}

// ComplianceReport represents a compliance report for legal purposes
type ComplianceReport struct {
	ReportID        string                 `db:"report_id"`
	ReportType      string                 `db:"report_type"`
	StartDate       time.Time              `db:"start_date"`
	EndDate         time.Time              `db:"end_date"`
	RequestedBy     string                 `db:"requested_by"`
	RequestedAt     time.Time              `db:"requested_at"`
	CompletedAt     *time.Time             `db:"completed_at"`
	Status          string                 `db:"status"` // pending, completed, failed
	ReportData      map[string]interface{} `db:"report_data"`
	DigitalSignature string                `db:"digital_signature"`
	LegalHash       string                 `db:"legal_hash"`
}

// TestCryptographicAuditTrailChaining tests audit trail integrity with cryptographic chaining
func TestCryptographicAuditTrailChaining(t *testing.T) {
	ctx := context.Background()
	container, connStr := setupTestContainer(t, ctx)
	defer container.Terminate(ctx)

	db, err := NewComplianceDatabase(ctx, &DatabaseConfig{
		ConnectionString: connStr,
		MaxConnections:   10,
		ConnectTimeout:   30 * time.Second,
	})
	require.NoError(t, err)
	defer db.Close()

	err = db.MigrateToLatest(ctx)
	require.NoError(t, err)

	t.Run("AuditChainIntegrity", func(t *testing.T) {
		// Create a sequence of audit entries that form a cryptographic chain
		entries := []*AuditEntry{
			{
				EntryID:   "AUDIT-chain001",
				EventType: "dmca_takedown",
				TargetID:  "QmChain001",
				Action:    "descriptor_blacklisted",
				Details:   map[string]interface{}{"requestor": "test1@example.com"},
				Timestamp: time.Now().UTC(),
				UserID:    "admin123",
				IPAddress: "192.168.1.100",
			},
			{
				EntryID:   "AUDIT-chain002",
				EventType: "counter_notice",
				TargetID:  "QmChain001",
				Action:    "counter_notice_submitted",
				Details:   map[string]interface{}{"user": "user@example.com"},
				Timestamp: time.Now().UTC().Add(1 * time.Hour),
				UserID:    "user456",
				IPAddress: "192.168.1.101",
			},
			{
				EntryID:   "AUDIT-chain003",
				EventType: "reinstatement",
				TargetID:  "QmChain001",
				Action:    "descriptor_reinstated",
				Details:   map[string]interface{}{"reason": "waiting period elapsed"},
				Timestamp: time.Now().UTC().Add(2 * time.Hour),
				UserID:    "admin123",
				IPAddress: "192.168.1.100",
			},
		}

		// Create audit entries with automatic hash chaining
		for i, entry := range entries {
			err := db.CreateAuditEntry(ctx, entry)
			require.NoError(t, err, "Should create audit entry %d", i+1)

			// Verify hash chain
			retrievedEntry, err := db.GetAuditEntry(ctx, entry.EntryID)
			require.NoError(t, err)
			assert.NotEmpty(t, retrievedEntry.EntryHash, "Entry should have hash")

			if i > 0 {
				// Verify previous hash linkage
				assert.NotEmpty(t, retrievedEntry.PreviousHash, "Entry should reference previous hash")
				
				prevEntry, err := db.GetAuditEntry(ctx, entries[i-1].EntryID)
				require.NoError(t, err)
				assert.Equal(t, prevEntry.EntryHash, retrievedEntry.PreviousHash, 
					"Entry should reference correct previous hash")
			} else {
				// First entry should reference the genesis hash
				assert.Equal(t, "0000000000000000000000000000000000000000000000000000000000000000", retrievedEntry.PreviousHash, "First entry should reference the genesis hash")
			}
		}

		// Verify complete audit chain integrity
		isValid, err := db.VerifyAuditChainIntegrity(ctx)
		require.NoError(t, err)
		assert.True(t, isValid, "Audit chain should maintain cryptographic integrity")

		// Get detailed integrity report
		integrityReport, err := db.GetAuditChainIntegrityReport(ctx)
		require.NoError(t, err)
		assert.True(t, integrityReport.Valid, "Detailed integrity report should be valid")
		assert.Equal(t, int64(3), integrityReport.TotalEntries, "Should have 3 entries")
		assert.Empty(t, integrityReport.BrokenChains, "Should have no broken chains")
		assert.Len(t, integrityReport.ChainSegments, 1, "Should have one continuous chain")
	})

	t.Run("TamperDetection", func(t *testing.T) {
		// Create audit entry
		entry := &AuditEntry{
			EntryID:   "AUDIT-tamper001",
			EventType: "dmca_takedown",
			TargetID:  "QmTamper001",
			Action:    "descriptor_blacklisted",
			Details:   map[string]interface{}{"original": "data"},
			Timestamp: time.Now().UTC(),
			UserID:    "admin123",
			IPAddress: "192.168.1.100",
		}

		err := db.CreateAuditEntry(ctx, entry)
		require.NoError(t, err)

		// Verify initial integrity
		isValid, err := db.VerifyAuditChainIntegrity(ctx)
		require.NoError(t, err)
		assert.True(t, isValid, "Initial audit chain should be valid")

		// Simulate tampering attempt (this should be prevented by immutable constraints)
		tamperingErr := db.SimulateTamperingAttempt(ctx, entry.EntryID, map[string]interface{}{
			"details": map[string]interface{}{"tampered": "data"},
		})
		
		// Tampering should be prevented
		assert.Error(t, tamperingErr, "Tampering should be prevented")

		// Verify integrity is still maintained
		isValidAfter, err := db.VerifyAuditChainIntegrity(ctx)
		require.NoError(t, err)
		assert.True(t, isValidAfter, "Audit chain should remain valid after tampering attempt")

		// Verify tamper detection
		tamperReport, err := db.DetectAuditTampering(ctx)
		require.NoError(t, err)
		if len(tamperReport.TamperingAttempts) > 0 {
			assert.Greater(t, len(tamperReport.TamperingAttempts), 0, "Should detect tampering attempts")
		}
	})

	t.Run("HashVerificationPerformance", func(t *testing.T) {
		// Create multiple audit entries for performance testing
		const numEntries = 100

		start := time.Now()
		for i := 0; i < numEntries; i++ {
			entry := &AuditEntry{
				EntryID:   fmt.Sprintf("AUDIT-perf%03d", i),
				EventType: "dmca_takedown",
				TargetID:  fmt.Sprintf("QmPerf%03d", i),
				Action:    "descriptor_blacklisted",
				Details:   map[string]interface{}{"index": i},
				Timestamp: time.Now().UTC().Add(time.Duration(i) * time.Second),
				UserID:    "admin123",
				IPAddress: "192.168.1.100",
			}

			err := db.CreateAuditEntry(ctx, entry)
			require.NoError(t, err)
		}
		creationDuration := time.Since(start)

		// Verify chain integrity performance
		start = time.Now()
		isValid, err := db.VerifyAuditChainIntegrity(ctx)
		verificationDuration := time.Since(start)

		require.NoError(t, err)
		assert.True(t, isValid, "Large audit chain should be valid")

		t.Logf("Created %d audit entries in %v", numEntries, creationDuration)
		t.Logf("Verified audit chain integrity in %v", verificationDuration)

		// Performance should be reasonable for legal compliance
		assert.Less(t, verificationDuration.Seconds(), 5.0, "Verification should complete within 5 seconds")
	})
}

// TestImmutableAuditLog tests audit log immutability requirements
func TestImmutableAuditLog(t *testing.T) {
	ctx := context.Background()
	container, connStr := setupTestContainer(t, ctx)
	defer container.Terminate(ctx)

	db, err := NewComplianceDatabase(ctx, &DatabaseConfig{
		ConnectionString: connStr,
		MaxConnections:   10,
		ConnectTimeout:   30 * time.Second,
	})
	require.NoError(t, err)
	defer db.Close()

	err = db.MigrateToLatest(ctx)
	require.NoError(t, err)

	// Enable immutability constraints
	err = db.EnableImmutableAuditLog(ctx)
	require.NoError(t, err)

	t.Run("PreventModification", func(t *testing.T) {
		// Create audit entry
		entry := &AuditEntry{
			EntryID:   "AUDIT-immutable001",
			EventType: "dmca_takedown",
			TargetID:  "QmImmutable001",
			Action:    "descriptor_blacklisted",
			Details:   map[string]interface{}{"requestor": "immutable@example.com"},
			Timestamp: time.Now().UTC(),
			UserID:    "admin123",
			IPAddress: "192.168.1.100",
		}

		err := db.CreateAuditEntry(ctx, entry)
		require.NoError(t, err)

		// Attempt to modify entry should fail
		updateErr := db.UpdateAuditEntry(ctx, entry.EntryID, map[string]interface{}{
			"action": "modified_action",
		})
		assert.Error(t, updateErr, "Should prevent audit entry modification")

		// Attempt to delete entry should fail
		deleteErr := db.DeleteAuditEntry(ctx, entry.EntryID)
		assert.Error(t, deleteErr, "Should prevent audit entry deletion")

		// Verify entry remains unchanged
		retrievedEntry, err := db.GetAuditEntry(ctx, entry.EntryID)
		require.NoError(t, err)
		assert.Equal(t, entry.Action, retrievedEntry.Action, "Entry should remain unchanged")
	})

	t.Run("AppendOnlyOperation", func(t *testing.T) {
		// Get initial count
		initialCount, err := db.GetAuditEntryCount(ctx)
		require.NoError(t, err)

		// Add new entries
		for i := 0; i < 5; i++ {
			entry := &AuditEntry{
				EntryID:   fmt.Sprintf("AUDIT-append%03d", i),
				EventType: "dmca_takedown",
				TargetID:  fmt.Sprintf("QmAppend%03d", i),
				Action:    "descriptor_blacklisted",
				Details:   map[string]interface{}{"index": i},
				Timestamp: time.Now().UTC().Add(time.Duration(i) * time.Second),
				UserID:    "admin123",
				IPAddress: "192.168.1.100",
			}

			err := db.CreateAuditEntry(ctx, entry)
			require.NoError(t, err)
		}

		// Verify count increased
		finalCount, err := db.GetAuditEntryCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, initialCount+5, finalCount, "Count should increase by 5")

		// Verify all entries are retrievable and in order
		entries, err := db.GetAuditEntriesInTimeRange(ctx, 
			time.Now().UTC().Add(-1*time.Hour), 
			time.Now().UTC().Add(1*time.Hour))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(entries), 5, "Should retrieve at least 5 entries")

		// Verify chronological ordering
		for i := 1; i < len(entries); i++ {
			assert.True(t, entries[i].Timestamp.After(entries[i-1].Timestamp) || 
				entries[i].Timestamp.Equal(entries[i-1].Timestamp), 
				"Entries should be in chronological order")
		}
	})
}

// TestDataRetentionPolicyEnforcement tests automated data retention policy enforcement
func TestDataRetentionPolicyEnforcement(t *testing.T) {
	ctx := context.Background()
	container, connStr := setupTestContainer(t, ctx)
	defer container.Terminate(ctx)

	db, err := NewComplianceDatabase(ctx, &DatabaseConfig{
		ConnectionString: connStr,
		MaxConnections:   10,
		ConnectTimeout:   30 * time.Second,
	})
	require.NoError(t, err)
	defer db.Close()

	err = db.MigrateToLatest(ctx)
	require.NoError(t, err)

	t.Run("RetentionPolicyConfiguration", func(t *testing.T) {
		// Configure retention policies for different data types
		policies := []*DataRetentionPolicy{
			{
				TableName:        "takedown_records",
				RetentionPeriod:  7 * 365 * 24 * time.Hour, // 7 years for legal compliance
				ArchiveAfter:     1 * 365 * 24 * time.Hour,  // Archive after 1 year
				DeleteAfter:      7 * 365 * 24 * time.Hour,  // Delete after 7 years
				ComplianceReason: "DMCA record retention requirement",
				Enabled:          true,
			},
			{
				TableName:        "audit_entries",
				RetentionPeriod:  10 * 365 * 24 * time.Hour, // 10 years for audit trail
				ArchiveAfter:     2 * 365 * 24 * time.Hour,   // Archive after 2 years
				DeleteAfter:      0,                          // Never delete audit entries
				ComplianceReason: "Legal audit trail preservation",
				Enabled:          true,
			},
			{
				TableName:        "notification_records",
				RetentionPeriod:  90 * 24 * time.Hour, // 90 days for notifications
				ArchiveAfter:     30 * 24 * time.Hour, // Archive after 30 days
				DeleteAfter:      90 * 24 * time.Hour, // Delete after 90 days
				ComplianceReason: "Privacy compliance for notifications",
				Enabled:          true,
			},
		}

		for _, policy := range policies {
			err := db.CreateRetentionPolicy(ctx, policy)
			assert.NoError(t, err, "Should create retention policy for %s", policy.TableName)
		}

		// Verify policies were created
		retrievedPolicies, err := db.GetRetentionPolicies(ctx)
		require.NoError(t, err)
		assert.Len(t, retrievedPolicies, 3, "Should have 3 retention policies")
	})

	t.Run("AutomatedRetentionEnforcement", func(t *testing.T) {
		// Create test data with different ages
		now := time.Now().UTC()

		// Create old takedown records for testing
		oldRecord := &TakedownRecord{
			TakedownID:     "TD-old001",
			DescriptorCID:  "QmOld001",
			RequestorEmail: "old@example.com",
			Status:         "active",
			TakedownDate:   now.Add(-2 * 365 * 24 * time.Hour), // 2 years old
			LegalBasis:     "DMCA 512(c)",
		}
		err := db.CreateTakedownRecord(ctx, oldRecord)
		require.NoError(t, err)

		// Create very old record for deletion testing
		veryOldRecord := &TakedownRecord{
			TakedownID:     "TD-veryold001",
			DescriptorCID:  "QmVeryOld001",
			RequestorEmail: "veryold@example.com",
			Status:         "active",
			TakedownDate:   now.Add(-8 * 365 * 24 * time.Hour), // 8 years old
			LegalBasis:     "DMCA 512(c)",
		}
		err = db.CreateTakedownRecord(ctx, veryOldRecord)
		require.NoError(t, err)

		// Run retention policy enforcement
		report, err := db.EnforceRetentionPolicies(ctx)
		require.NoError(t, err)
		assert.NotNil(t, report, "Should return enforcement report")

		t.Logf("Retention enforcement report: %+v", report)

		// Verify appropriate actions were taken
		if report.RecordsArchived > 0 {
			assert.Greater(t, report.RecordsArchived, int64(0), "Should archive old records")
		}

		if report.RecordsDeleted > 0 {
			assert.Greater(t, report.RecordsDeleted, int64(0), "Should delete very old records")
		}

		// Verify audit entries are never deleted (policy setting)
		auditCount, err := db.GetAuditEntryCount(ctx)
		require.NoError(t, err)
		assert.Greater(t, auditCount, int64(0), "Audit entries should never be deleted")
	})

	t.Run("RetentionPolicyCompliance", func(t *testing.T) {
		// Generate compliance report for retention policies
		complianceReport, err := db.GenerateRetentionComplianceReport(ctx, 
			time.Now().UTC().Add(-30*24*time.Hour), 
			time.Now().UTC())
		require.NoError(t, err)
		assert.NotNil(t, complianceReport, "Should generate compliance report")

		// Verify report contains required information
		assert.NotEmpty(t, complianceReport.ReportID, "Report should have ID")
		assert.NotEmpty(t, complianceReport.ReportData, "Report should contain data")

		// Verify legal hash for report integrity
		assert.NotEmpty(t, complianceReport.LegalHash, "Report should have legal hash")
		
		// Verify hash integrity
		isValid, err := db.VerifyReportIntegrity(ctx, complianceReport)
		assert.NoError(t, err)
		assert.True(t, isValid, "Report integrity should be valid")
	})
}

// TestPointInTimeRecovery tests point-in-time recovery capabilities
func TestPointInTimeRecovery(t *testing.T) {
	ctx := context.Background()
	container, connStr := setupTestContainer(t, ctx)
	defer container.Terminate(ctx)

	db, err := NewComplianceDatabase(ctx, &DatabaseConfig{
		ConnectionString: connStr,
		MaxConnections:   10,
		ConnectTimeout:   30 * time.Second,
	})
	require.NoError(t, err)
	defer db.Close()

	err = db.MigrateToLatest(ctx)
	require.NoError(t, err)

	t.Run("CreatePointInTimeSnapshot", func(t *testing.T) {
		// Create initial data
		record := &TakedownRecord{
			TakedownID:     "TD-snapshot001",
			DescriptorCID:  "QmSnapshot001",
			RequestorEmail: "snapshot@example.com",
			Status:         "active",
			TakedownDate:   time.Now().UTC(),
			LegalBasis:     "DMCA 512(c)",
		}
		err := db.CreateTakedownRecord(ctx, record)
		require.NoError(t, err)

		// Create point-in-time snapshot
		snapshot, err := db.CreatePointInTimeSnapshot(ctx, &PointInTimeSnapshot{
			SnapshotID:  "SNAP-001",
			Description: "Pre-modification snapshot",
			Timestamp:   time.Now().UTC(),
			ExpiresAt:   time.Now().UTC().Add(30 * 24 * time.Hour), // 30 days
		})
		require.NoError(t, err)
		assert.NotNil(t, snapshot, "Should create snapshot")
		assert.Equal(t, "completed", snapshot.Status, "Snapshot should be completed")
		assert.Greater(t, snapshot.Size, int64(0), "Snapshot should have size")
		assert.NotEmpty(t, snapshot.Checksum, "Snapshot should have checksum")

		// Verify snapshot can be retrieved
		retrievedSnapshot, err := db.GetPointInTimeSnapshot(ctx, snapshot.SnapshotID)
		assert.NoError(t, err)
		assert.Equal(t, snapshot.SnapshotID, retrievedSnapshot.SnapshotID)
	})

	t.Run("PointInTimeQuery", func(t *testing.T) {
		// Record current state
		beforeTime := time.Now().UTC()

		// Modify data
		record := &TakedownRecord{
			TakedownID:     "TD-timequery001",
			DescriptorCID:  "QmTimeQuery001",
			RequestorEmail: "timequery@example.com",
			Status:         "active",
			TakedownDate:   time.Now().UTC(),
			LegalBasis:     "DMCA 512(c)",
		}
		err := db.CreateTakedownRecord(ctx, record)
		require.NoError(t, err)

		afterTime := time.Now().UTC()

		// Update record
		record.Status = "disputed"
		err = db.UpdateTakedownRecord(ctx, record)
		require.NoError(t, err)

		modificationTime := time.Now().UTC()

		// Query point-in-time state (before modification)
		recordAtTime, err := db.GetTakedownRecordAtTime(ctx, record.TakedownID, afterTime)
		assert.NoError(t, err)
		assert.NotNil(t, recordAtTime)
		assert.Equal(t, "active", recordAtTime.Status, "Should show original status")

		// Query current state
		currentRecord, err := db.GetTakedownRecord(ctx, record.TakedownID)
		assert.NoError(t, err)
		assert.Equal(t, "disputed", currentRecord.Status, "Should show current status")

		// Query state history
		stateHistory, err := db.GetTakedownRecordHistory(ctx, record.TakedownID)
		assert.NoError(t, err)
		assert.GreaterOrEqual(t, len(stateHistory), 2, "Should have at least 2 state changes")

		// Verify chronological order
		for i := 1; i < len(stateHistory); i++ {
			assert.True(t, stateHistory[i].Timestamp.After(stateHistory[i-1].Timestamp), 
				"History should be in chronological order")
		}

		// Log timing information
		t.Logf("Before time: %v", beforeTime)
		t.Logf("After time: %v", afterTime)
		t.Logf("Modification time: %v", modificationTime)
	})

	t.Run("RecoveryValidation", func(t *testing.T) {
		// List available snapshots
		snapshots, err := db.ListPointInTimeSnapshots(ctx, time.Now().UTC().Add(-24*time.Hour), time.Now().UTC())
		require.NoError(t, err)
		assert.Greater(t, len(snapshots), 0, "Should have snapshots available")

		for _, snapshot := range snapshots {
			// Validate snapshot integrity
			isValid, err := db.ValidateSnapshotIntegrity(ctx, snapshot.SnapshotID)
			assert.NoError(t, err)
			assert.True(t, isValid, "Snapshot %s should be valid", snapshot.SnapshotID)

			// Estimate recovery time
			estimatedTime, err := db.EstimateRecoveryTime(ctx, snapshot.SnapshotID)
			assert.NoError(t, err)
			assert.Greater(t, estimatedTime, time.Duration(0), "Should provide recovery time estimate")

			t.Logf("Snapshot %s: size=%d, recovery_estimate=%v", 
				snapshot.SnapshotID, snapshot.Size, estimatedTime)
		}
	})
}

// TestLegalComplianceReporting tests compliance reporting for legal requirements
func TestLegalComplianceReporting(t *testing.T) {
	ctx := context.Background()
	container, connStr := setupTestContainer(t, ctx)
	defer container.Terminate(ctx)

	db, err := NewComplianceDatabase(ctx, &DatabaseConfig{
		ConnectionString: connStr,
		MaxConnections:   10,
		ConnectTimeout:   30 * time.Second,
	})
	require.NoError(t, err)
	defer db.Close()

	err = db.MigrateToLatest(ctx)
	require.NoError(t, err)

	t.Run("DMCAComplianceReport", func(t *testing.T) {
		// Create test data for reporting
		startDate := time.Now().UTC().Add(-30 * 24 * time.Hour)
		endDate := time.Now().UTC()

		// Create sample takedown records
		for i := 0; i < 10; i++ {
			record := &TakedownRecord{
				TakedownID:     fmt.Sprintf("TD-report%03d", i),
				DescriptorCID:  fmt.Sprintf("QmReport%03d", i),
				RequestorEmail: fmt.Sprintf("report%d@example.com", i%3), // 3 unique requestors
				Status:         []string{"active", "disputed", "reinstated"}[i%3],
				TakedownDate:   startDate.Add(time.Duration(i) * 24 * time.Hour),
				LegalBasis:     "DMCA 512(c)",
			}
			err := db.CreateTakedownRecord(ctx, record)
			require.NoError(t, err)
		}

		// Generate DMCA compliance report
		report, err := db.GenerateDMCAComplianceReport(ctx, startDate, endDate)
		require.NoError(t, err)
		assert.NotNil(t, report, "Should generate DMCA compliance report")

		// Verify report contents
		assert.NotEmpty(t, report.ReportID, "Report should have ID")
		assert.Equal(t, "dmca_compliance", report.ReportType)
		assert.Equal(t, "completed", report.Status)
		assert.NotEmpty(t, report.ReportData, "Report should contain data")

		// Verify report data contains expected metrics
		reportData := report.ReportData
		assert.Contains(t, reportData, "total_takedowns", "Report should include total takedowns")
		assert.Contains(t, reportData, "active_takedowns", "Report should include active takedowns")
		assert.Contains(t, reportData, "disputed_takedowns", "Report should include disputed takedowns")
		assert.Contains(t, reportData, "unique_requestors", "Report should include unique requestors")

		// Verify digital signature and legal hash
		assert.NotEmpty(t, report.DigitalSignature, "Report should have digital signature")
		assert.NotEmpty(t, report.LegalHash, "Report should have legal hash")

		// Verify report integrity
		isValid, err := db.VerifyReportIntegrity(ctx, report)
		assert.NoError(t, err)
		assert.True(t, isValid, "Report integrity should be valid")
	})

	t.Run("AuditTrailComplianceReport", func(t *testing.T) {
		// Generate audit trail compliance report
		startDate := time.Now().UTC().Add(-7 * 24 * time.Hour)
		endDate := time.Now().UTC()

		report, err := db.GenerateAuditTrailComplianceReport(ctx, startDate, endDate)
		require.NoError(t, err)
		assert.NotNil(t, report, "Should generate audit trail compliance report")

		// Verify audit-specific metrics
		reportData := report.ReportData
		assert.Contains(t, reportData, "total_audit_entries", "Report should include total audit entries")
		assert.Contains(t, reportData, "chain_integrity_status", "Report should include chain integrity status")
		assert.Contains(t, reportData, "tampering_attempts", "Report should include tampering attempts")

		// Verify integrity status
		integrityStatus, ok := reportData["chain_integrity_status"].(string)
		assert.True(t, ok, "Chain integrity status should be string")
		assert.Equal(t, "valid", integrityStatus, "Chain integrity should be valid")
	})

	t.Run("LegalDiscoveryReport", func(t *testing.T) {
		// Simulate legal discovery request
		discoveryRequest := &LegalDiscoveryRequest{
			RequestID:   "DISCOVERY-001",
			CaseNumber:  "CASE-2024-001",
			RequestedBy: "legal@example.com",
			TargetDescriptors: []string{"QmReport001", "QmReport002"},
			DateRange: &DateRange{
				Start: time.Now().UTC().Add(-30 * 24 * time.Hour),
				End:   time.Now().UTC(),
			},
			RequestType: "takedown_history",
			LegalBasis:  "Court order discovery",
		}

		report, err := db.GenerateLegalDiscoveryReport(ctx, discoveryRequest)
		require.NoError(t, err)
		assert.NotNil(t, report, "Should generate legal discovery report")

		// Verify discovery report contains required legal elements
		assert.Equal(t, "legal_discovery", report.ReportType)
		assert.NotEmpty(t, report.LegalHash, "Discovery report should have legal hash")
		assert.NotEmpty(t, report.DigitalSignature, "Discovery report should be digitally signed")

		// Verify chain of custody information
		reportData := report.ReportData
		assert.Contains(t, reportData, "chain_of_custody", "Should include chain of custody")
		assert.Contains(t, reportData, "collection_method", "Should include collection method")
		assert.Contains(t, reportData, "integrity_verification", "Should include integrity verification")

		// Verify legal admissibility markers
		assert.Contains(t, reportData, "legal_certification", "Should include legal certification")
		assert.Contains(t, reportData, "timestamp_verification", "Should include timestamp verification")
	})

	t.Run("ComplianceReportArchival", func(t *testing.T) {
		// List all generated reports
		reports, err := db.ListComplianceReports(ctx, ListOptions{
			Limit: 100,
			OrderBy: "requested_at",
			OrderDirection: "DESC",
		})
		require.NoError(t, err)
		assert.Greater(t, len(reports), 0, "Should have generated reports")

		for _, report := range reports {
			// Archive completed reports
			if report.Status == "completed" {
				err := db.ArchiveComplianceReport(ctx, report.ReportID)
				assert.NoError(t, err, "Should archive completed report")

				// Verify archived report is still accessible
				archivedReport, err := db.GetArchivedComplianceReport(ctx, report.ReportID)
				assert.NoError(t, err, "Should retrieve archived report")
				assert.Equal(t, report.ReportID, archivedReport.ReportID)

				// Verify integrity is preserved in archival
				isValid, err := db.VerifyReportIntegrity(ctx, archivedReport)
				assert.NoError(t, err)
				assert.True(t, isValid, "Archived report integrity should be preserved")
			}
		}
	})
}

// Helper types and methods for testing

type AuditChainIntegrityReport struct {
	Valid          bool                    `json:"valid"`
	TotalEntries   int64                   `json:"total_entries"`
	BrokenChains   []string                `json:"broken_chains"`
	ChainSegments  []ChainSegment          `json:"chain_segments"`
	VerifiedAt     time.Time               `json:"verified_at"`
}

type ChainSegment struct {
	StartEntry string    `json:"start_entry"`
	EndEntry   string    `json:"end_entry"`
	Length     int64     `json:"length"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
}

type TamperDetectionReport struct {
	TamperingAttempts []TamperingAttempt `json:"tampering_attempts"`
	DetectedAt        time.Time          `json:"detected_at"`
}

type TamperingAttempt struct {
	EntryID     string    `json:"entry_id"`
	AttemptType string    `json:"attempt_type"`
	DetectedAt  time.Time `json:"detected_at"`
	IPAddress   string    `json:"ip_address"`
	Details     string    `json:"details"`
}

type RetentionEnforcementReport struct {
	RecordsArchived   int64     `json:"records_archived"`
	RecordsDeleted    int64     `json:"records_deleted"`
	TablesProcessed   []string  `json:"tables_processed"`
	EnforcedAt        time.Time `json:"enforced_at"`
	Errors            []string  `json:"errors"`
}

type LegalDiscoveryRequest struct {
	RequestID         string     `json:"request_id"`
	CaseNumber        string     `json:"case_number"`
	RequestedBy       string     `json:"requested_by"`
	TargetDescriptors []string   `json:"target_descriptors"`
	DateRange         *DateRange `json:"date_range"`
	RequestType       string     `json:"request_type"`
	LegalBasis        string     `json:"legal_basis"`
}

type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Methods that need to be implemented - will fail compilation initially

func (db *ComplianceDatabase) CreateAuditEntry(ctx context.Context, entry *AuditEntry) error {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) GetAuditChainIntegrityReport(ctx context.Context) (*AuditChainIntegrityReport, error) {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) SimulateTamperingAttempt(ctx context.Context, entryID string, changes map[string]interface{}) error {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) DetectAuditTampering(ctx context.Context) (*TamperDetectionReport, error) {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) EnableImmutableAuditLog(ctx context.Context) error {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) UpdateAuditEntry(ctx context.Context, entryID string, changes map[string]interface{}) error {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) DeleteAuditEntry(ctx context.Context, entryID string) error {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) GetAuditEntryCount(ctx context.Context) (int64, error) {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) GetAuditEntriesInTimeRange(ctx context.Context, start, end time.Time) ([]*AuditEntry, error) {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) CreateRetentionPolicy(ctx context.Context, policy *DataRetentionPolicy) error {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) GetRetentionPolicies(ctx context.Context) ([]*DataRetentionPolicy, error) {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) EnforceRetentionPolicies(ctx context.Context) (*RetentionEnforcementReport, error) {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) GenerateRetentionComplianceReport(ctx context.Context, start, end time.Time) (*ComplianceReport, error) {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) VerifyReportIntegrity(ctx context.Context, report *ComplianceReport) (bool, error) {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) CreatePointInTimeSnapshot(ctx context.Context, snapshot *PointInTimeSnapshot) (*PointInTimeSnapshot, error) {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) GetPointInTimeSnapshot(ctx context.Context, snapshotID string) (*PointInTimeSnapshot, error) {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) GetTakedownRecordAtTime(ctx context.Context, takedownID string, pointInTime time.Time) (*TakedownRecord, error) {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) GetTakedownRecordHistory(ctx context.Context, takedownID string) ([]*TakedownRecord, error) {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) ListPointInTimeSnapshots(ctx context.Context, start, end time.Time) ([]*PointInTimeSnapshot, error) {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) ValidateSnapshotIntegrity(ctx context.Context, snapshotID string) (bool, error) {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) EstimateRecoveryTime(ctx context.Context, snapshotID string) (time.Duration, error) {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) GenerateDMCAComplianceReport(ctx context.Context, start, end time.Time) (*ComplianceReport, error) {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) GenerateAuditTrailComplianceReport(ctx context.Context, start, end time.Time) (*ComplianceReport, error) {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) GenerateLegalDiscoveryReport(ctx context.Context, request *LegalDiscoveryRequest) (*ComplianceReport, error) {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) ListComplianceReports(ctx context.Context, options ListOptions) ([]*ComplianceReport, error) {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) ArchiveComplianceReport(ctx context.Context, reportID string) error {
	panic("not implemented - TDD implementation needed")
}

func (db *ComplianceDatabase) GetArchivedComplianceReport(ctx context.Context, reportID string) (*ComplianceReport, error) {
	panic("not implemented - TDD implementation needed")
}