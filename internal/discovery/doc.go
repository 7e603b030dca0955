// Package discovery lets nodes find the coordinator over memberlist
// gossip.
//
// The coordinator joins the gossip pool advertising its sync address in
// node metadata. Nodes join the same pool and resolve the coordinator
// address from the membership list each time they (re)connect, so a
// restarted coordinator on a new host is picked up without
// reconfiguring the cluster.
package discovery
