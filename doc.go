// Package approvalflow provides a multi-step approval workflow engine for HR
// and business transactions.
//
// Workflow templates declare ordered approval steps; each running instance
// moves through them as resolved approvers approve, reject, return or
// delegate, while a periodic sweep tracks SLA status, fires deadline
// escalations and terminates instances that outlive their ceiling. Appraisal
// templates get a phase dependency validator and a date scheduler.
//
// Host applications typically use the Service facade:
//
//	srv, _ := approvalflow.New(approvalflow.WithDirectory(directory))
//	_, _ = srv.Templates().Import(ctx, "leave.yaml")
//	_, _ = srv.Templates().Activate(ctx, "leave")
//	inst, _ := srv.Engine().CreateInstance(ctx, &engine.CreateRequest{...})
//	_, _ = srv.Engine().Approve(ctx, inst.ID, "mgr-1", "ok")
//
// Start runs the SLA sweep in the background until Shutdown.
package approvalflow
