// Package synchronizer reserves the same time slot on several testbeds.
//
// [FindSlot] advances a candidate start until every provider reports that
// its resources fit. [Synchronize] then commits the slot everywhere. When a
// backend refuses the start date (another job won the race), every
// reservation made during the attempt is undone, the start moves to the
// backend's hint and the walltimes shrink so that the reservations still
// end at the same time.
package synchronizer
