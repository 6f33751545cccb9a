/*

Package base provides base data structures and functions for the movie recommender.

The base data structures and functions include:

* CSV Line Reader

* Random Generator

* Matrix Allocation

*/
package base
