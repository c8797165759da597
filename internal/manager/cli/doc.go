// Package cli implements the one-shot commands of the provisioner binary:
// create, delete, delete-workspace, quota, workspaces and user.
package cli
